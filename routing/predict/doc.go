// Package predict blends live skill scores with historical routing metrics
// into a primary route and ranked alternatives.
//
// The Store keeps exponentially smoothed per-worker and per-pattern metrics
// fed by completed runs. The Extractor turns a request into a small feature
// set (token count, complexity, request type, user tendencies). The Router
// combines both with the matcher and selector output to emit a
// RoutingPrediction. Everything except the optional qualitative hint call is
// deterministic, so routing stays reproducible when the text-generation
// service is down.
package predict
