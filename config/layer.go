package config

import "fmt"

// Layer is one source of configuration values.
type Layer map[string]any

// mergeRule combines the value of a key in an earlier
// layer with the value of a later one.
type mergeRule func(base, override any) any

// mergeRules lists the keys not simply replaced by later
// layers.
var mergeRules = map[string]mergeRule{
	"templates": mergeKeys,
	"githubApp": mergeKeys,
}

// Merge returns a new layer holding layers applied in
// order. Inputs are not modified.
func Merge(layers ...Layer) Layer {
	out := make(Layer)

	for _, layer := range layers {
		for key, value := range layer {
			rule, ok := mergeRules[key]
			if !ok {
				out[key] = value

				continue
			}

			out[key] = rule(out[key], value)
		}
	}

	return out
}

// mergeKeys overlays the keys of override onto a copy of
// base. A nil override, or a nil value for one key, keeps
// what base holds. Other non-map values are kept as is for
// validateTemplates to reject.
func mergeKeys(base, override any) any {
	if override == nil {
		return base
	}

	over, ok := asMap(override)
	if !ok {
		return override
	}

	merged := make(map[string]any, len(over))

	if b, ok := asMap(base); ok {
		for k, v := range b {
			merged[k] = v
		}
	}

	for k, v := range over {
		if v == nil {
			continue
		}

		merged[k] = v
	}

	return merged
}

// validateTemplates reports a "templates" entry of l that
// is neither absent, nil, nor a mapping.
func validateTemplates(l Layer) error {
	v, ok := l["templates"]
	if !ok || v == nil {
		return nil
	}

	if _, ok := asMap(v); !ok {
		return fmt.Errorf("%w, got %T", ErrInvalidTemplates, v)
	}

	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Layer:
		return m, true
	default:
		return nil, false
	}
}

// without returns a copy of l lacking keys.
func (l Layer) without(keys ...string) Layer {
	out := make(Layer, len(l))
	for k, v := range l {
		out[k] = v
	}

	for _, k := range keys {
		delete(out, k)
	}

	return out
}
