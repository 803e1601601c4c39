// Package pattern chooses how selected workers collaborate on a request.
//
// A static registry holds five collaboration templates with symbolic
// participant roles. The selector asks the text-generation service to pick a
// template and workers, validates the reply against the registry, resolves
// symbolic roles to concrete worker names with a fixed rule table, and falls
// back to sequential-handoff over the top two workers whenever the reply
// cannot be honored.
package pattern
