package extraction

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// StringPattern accepts a non-empty string, optionally matching Pattern.
type StringPattern struct {
	Pattern *regexp.Regexp
}

func (c StringPattern) Check(v any) bool {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	return c.Pattern == nil || c.Pattern.MatchString(s)
}

// DigitString accepts a string of digits and separators whose digit count
// lies in [MinDigits, MaxDigits]. MaxDigits 0 means no upper bound.
type DigitString struct {
	Pattern   *regexp.Regexp
	MinDigits int
	MaxDigits int
}

func (c DigitString) Check(v any) bool {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	if c.Pattern != nil && !c.Pattern.MatchString(s) {
		return false
	}
	n := countDigits(s)
	return n >= c.MinDigits && (c.MaxDigits == 0 || n <= c.MaxDigits)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// NumericRange accepts an integer in [Min, Max]. Integral floats, json.Number
// and numeric strings such as "34" are accepted.
type NumericRange struct {
	Min int64
	Max int64
}

func (c NumericRange) Check(v any) bool {
	n, ok := asInteger(v)
	return ok && n >= c.Min && n <= c.Max
}

// asInteger coerces the integer encodings a model may produce.
func asInteger(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return asInteger(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
