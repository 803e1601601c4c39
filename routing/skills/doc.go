// Package skills scores candidate workers against a request.
//
// Each worker gets four weighted sub-scores (primary skills, domain
// expertise, task type, collaboration fit) from the text-generation service.
// When the service is unavailable or replies malformed, a deterministic
// keyword-overlap fallback keeps routing reproducible at a fixed lower
// confidence.
package skills
