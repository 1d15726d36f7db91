package flow

// Params carries run-scoped parameters. A Flow binds its parameters to each
// step immediately before the step executes; a BatchFlow merges its base
// parameters with each per-run override set. Steps read the bound parameters
// through Context.Params().
//
// Params values are never mutated by the engine after binding. Merge returns
// a fresh map, so a parameter set handed to one run cannot leak writes into
// another.
type Params map[string]any

// String returns the string value for key, or defaultVal if missing or not
// a string.
func (p Params) String(key, defaultVal string) string {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not
// convertible. Whole-valued float64s convert; fractional values do not.
func (p Params) Int(key string, defaultVal int) int {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a
// bool.
func (p Params) Bool(key string, defaultVal bool) bool {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not
// convertible.
func (p Params) Float(key string, defaultVal float64) float64 {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Merge returns a new Params holding p's entries overlaid with overrides.
// Neither input is modified.
func (p Params) Merge(overrides Params) Params {
	merged := make(Params, len(p)+len(overrides))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	return Params(nil).Merge(p)
}
