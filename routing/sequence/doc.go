// Package sequence turns a collaboration recommendation into a fully
// specified execution sequence.
//
// The optimizer asks the text-generation service for per-step durations,
// priorities, interruption safety and quality checkpoints in one schema-backed
// decision. When the service fails it degrades to a deterministic sequence of
// one interruption-safe step per selected worker, strictly chained. Two
// mechanical variants ride along: a speed variant (durations scaled to 80%,
// checkpoints truncated to one) and a quality variant (a peer review step
// after every high-priority step). Free-text risk statements are classified
// into fixed risk types with canned mitigations.
package sequence
