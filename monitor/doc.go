// Package monitor watches line-oriented operator input alongside a running
// execution and classifies each line into an interruption or plain
// conversational context. Classification runs ordered regex groups with a
// keyword fallback; the first matching group wins. A monitor observes one
// session at a time and refuses input for sessions it is not watching.
package monitor
