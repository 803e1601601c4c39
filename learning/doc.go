// Package learning maintains durable per-user behavior models and turns live
// feedback into plan adaptations.
//
// The Learner ingests feedback events and updates the user's model: worker
// and pattern preference nudges, interruption and session-duration EMAs,
// bounded satisfaction/frustration keyword lists, recurring behavior
// patterns, and preference-shift insights. Models persist through a Store;
// memory, file, redis and database backends are provided.
//
// The Planner proposes changes to a live plan from fresh feedback. Proposals
// below the confidence gate are dropped silently; the caller treats that as
// "no change", not an error.
package learning
