package overlay

import (
	"image"
	"image/color"
)

// Typed accessors over the merged parameter map. Overrides arrive from
// decoded JSON, so every numeric may be float64 regardless of the default's
// Go type; accessors coerce and fall back to the given default when a value
// is missing or has an unusable type.

func intParam(p Params, key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return fallback
}

func floatParam(p Params, key string, fallback float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

func boolParam(p Params, key string, fallback bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return fallback
}

// numberSlice normalizes []int, []float64 and decoded-JSON []interface{}
// into a plain int slice.
func numberSlice(v interface{}) ([]int, bool) {
	switch s := v.(type) {
	case []int:
		return s, true
	case []float64:
		out := make([]int, len(s))
		for i, f := range s {
			out[i] = int(f)
		}
		return out, true
	case []interface{}:
		out := make([]int, 0, len(s))
		for _, e := range s {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case float64:
				out = append(out, int(n))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

func colorParam(p Params, key string, fallback color.RGBA) color.RGBA {
	s, ok := numberSlice(p[key])
	if !ok || len(s) < 3 {
		return fallback
	}
	return color.RGBA{R: uint8(s[0]), G: uint8(s[1]), B: uint8(s[2]), A: 255}
}

func pointParam(p Params, key string, fallback image.Point) image.Point {
	s, ok := numberSlice(p[key])
	if !ok || len(s) < 2 {
		return fallback
	}
	return image.Pt(s[0], s[1])
}
