// Package types provides core types shared across the smalltalk routing
// pipeline. This package has ZERO dependencies on other smalltalk packages to
// avoid circular imports. All other packages should import types from here.
//
// The main groups are:
//
//   - Worker          — the minimal conversational worker contract and its
//     immutable capability profile
//   - SkillsMatchAnalysis / CollaborationRecommendation / RoutingPrediction —
//     per-request routing artifacts, never persisted
//   - SequenceStep / OptimizedSequence — the fully specified step plan with
//     durations, priorities and interruption-safety annotations
//   - ExecutionPlan / ExecutionState / Interruption — the run-time record of a
//     single session's execution and the operator signals that steer it
//   - FeedbackEvent / UserBehaviorModel / PlanAdaptation — the durable per-user
//     learning surface
//   - Error / ErrorCode — structured errors with retryable and provider
//     metadata, compatible with errors.Is / errors.As
package types
