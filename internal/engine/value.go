package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// toFloat coerces a scalar to float64. Booleans coerce to 1/0 and numeric
// strings are parsed; lists, nil, and non-numeric strings do not coerce.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toText renders a scalar in its canonical string form for categorical
// comparison. Integral floats render without a trailing ".0" so that a JSON
// number 2 and the string "2" compare equal.
func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// toList interprets a rule value as a list of canonical strings for
// membership tests. Scalars are not lists.
func toList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = toText(item)
		}
		return out, true
	default:
		return nil, false
	}
}
