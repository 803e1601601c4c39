// Package orchestrator ties the routing strategies, the execution engine,
// the interruption monitor and the feedback learners into one entry point.
//
// One orchestrator serves many sessions. Each session carries its own worker
// roster, its own monitor feed for operator input, and at most one live run
// at a time. Routing composes four swappable strategies: skills matching,
// route prediction, pattern selection and sequence optimization; their
// outputs merge into a single decision whose plan the engine drives.
//
// Interruptions parked by the engine come back as outcomes with a follow-up
// request; Dispatch resolves the mechanical ones (resume, worker swap,
// replan) while clarifications wait for AnswerClarification. Feedback flows
// through HandleFeedback, which updates the user's behavior model and lets
// the adaptive planner amend the live plan when its confidence clears the
// gate.
package orchestrator
