package analysis

// Result is a validated decision reply. Getters apply the grammar's defaults
// for optional fields that were absent or unparseable: integers default to
// 50, scores to 0.5, lists to empty, text to "".
type Result struct {
	decision string
	raw      string
	fields   map[string]string
}

// Decision returns the decision name the result answers.
func (r *Result) Decision() string { return r.decision }

// Raw returns the unmodified reply text.
func (r *Result) Raw() string { return r.raw }

// Has reports whether the reply carried the field at all.
func (r *Result) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Int returns a numeric field on its raw 0-100 scale, defaulting to 50.
func (r *Result) Int(name string) int {
	value, ok := r.fields[name]
	if !ok {
		return 50
	}
	n, ok := firstInt(value)
	if !ok {
		return 50
	}
	return n
}

// Score returns a numeric field normalized to [0,1], defaulting to 0.5.
// Out-of-range replies are clamped rather than rejected.
func (r *Result) Score(name string) float64 {
	return Clamp01(float64(r.Int(name)) / 100.0)
}

// List returns a list field, defaulting to empty.
func (r *Result) List(name string) []string {
	value, ok := r.fields[name]
	if !ok {
		return nil
	}
	return splitList(value)
}

// Text returns a free-text field verbatim, defaulting to "".
func (r *Result) Text(name string) string {
	return r.fields[name]
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
