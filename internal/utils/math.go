package utils

import "golang.org/x/exp/constraints"

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// ClampIndex bounds idx to the valid range for a slice of length.
func ClampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}

// Lerp interpolates linearly between a and b by t in [0,1].
func Lerp(a, b, t float64) float64 {
	return a + Clamp(t, 0.0, 1.0)*(b-a)
}

// WrapUnit wraps v into [0,1), treating the interval as circular.
func WrapUnit(v float64) float64 {
	v -= float64(int64(v))
	if v < 0 {
		v++
	}
	return v
}

// UnitDelta returns the shortest signed distance from a to b on the unit
// circle, in (-0.5, 0.5].
func UnitDelta(a, b float64) float64 {
	d := WrapUnit(b) - WrapUnit(a)
	if d > 0.5 {
		d -= 1
	} else if d <= -0.5 {
		d += 1
	}
	return d
}
