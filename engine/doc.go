// Package engine runs execution plans step by step, one session per run,
// streaming each worker's output in chunks. Cancellation is cooperative:
// the engine checks for a pending interruption (and context cancellation)
// before every chunk and at every step boundary, never mid-call. A run that
// pauses keeps its slot and resumes with an explicit Resume; terminal runs
// move to a bounded archive.
package engine
