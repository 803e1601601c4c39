// Package analysis implements the structured-response contract shared by
// every analytical component in the routing pipeline.
//
// All reasoning is delegated to a text-generation provider that is asked to
// answer in a plain line grammar, one field per line:
//
//	FIELD_NAME: value
//
// Numeric fields carry an integer on a 0-100 scale, list fields carry
// comma-separated values. Each decision declares a Schema naming its fields
// and which of them are required. Parsing is tolerant about decoration
// (brackets, dashes, markdown bullets), but a reply missing a required field
// is rejected as a typed malformed-analysis error so the caller can run its
// deterministic fallback instead of acting on silently defaulted values.
package analysis
