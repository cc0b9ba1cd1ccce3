// Package humantime formats a duration as an approximate, rounded,
// human-readable string: "1.5 seconds", "3 minutes", "200 nanoseconds".
//
// spec.md §1 treats the duration formatter as an out-of-scope external
// collaborator, so this package is the pluggable default the
// FunctionWrapper logs through, grounded on
// original_source/parallelism/core/handlers/function_handler.py's
// beautify_time.
package humantime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DurationFormatter renders a duration for a log line. Implementations
// need not be precise; this is a human-facing approximation, not a
// timing measurement API.
type DurationFormatter interface {
	Format(d time.Duration) string
}

// Decimals controls how many fractional digits Format rounds to before
// trimming trailing zeroes, mirroring DECIMAL_PRECISION.
const Decimals = 2

// Default is the package-level DurationFormatter FunctionWrapper uses
// unless the caller supplies another one.
var Default DurationFormatter = unitFormatter{}

type unitFormatter struct{}

// Format renders d the way beautify_time does: pick the largest time
// unit for which the magnitude is still comfortably readable,
// round-half-up to Decimals digits, trim trailing zeroes, and pluralize
// unless the rounded value is exactly 1.
func (unitFormatter) Format(d time.Duration) string {
	seconds := d.Seconds()
	var value float64
	var unit string
	switch {
	case seconds < 1e-6:
		value = seconds * 1e9
		unit = "nanosecond"
	case seconds < 1e-4:
		value = seconds * 1e6
		unit = "microsecond"
	case seconds < 1:
		value = seconds * 1e3
		unit = "millisecond"
	case seconds < 60:
		value = seconds
		unit = "second"
	case seconds < 3600:
		value = seconds / 60
		unit = "minute"
	case seconds < 86400:
		value = seconds / 3600
		unit = "hour"
	case seconds < 604800:
		value = seconds / 86400
		unit = "day"
	default:
		value = seconds / 604800
		unit = "week"
	}
	rounded := roundHalfUp(value, Decimals)
	if rounded != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%s %s", trimmed(rounded, Decimals), unit)
}

func roundHalfUp(value float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Floor(value*shift+0.5) / shift
}

func trimmed(value float64, decimals int) string {
	s := strconv.FormatFloat(value, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
