// Package llm defines the text-generation provider contract consumed by the
// routing analyses, plus an OpenAI-compatible HTTP implementation and
// composable wrappers for retry, rate limiting and completion caching.
//
// The pipeline treats the provider as an opaque latency source: every call
// site must tolerate failure and fall back deterministically, so providers
// here focus on faithful error classification (types.ErrorCode plus the
// Retryable flag) rather than recovery.
package llm
