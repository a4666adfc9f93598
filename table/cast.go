package table

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
)

// ErrCast marks every error caused by data that does not reconcile with a
// schema.
var ErrCast = errors.New("cast error")

func castErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrCast)
}

// CastValue converts v to the Go representation of t. The conversion is
// strict: strings are never parsed into numbers, integers only accept
// integral numbers, floats accept any number and nulls pass through.
func CastValue(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.String:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case schema.Int:
		if i, ok := asInt(v); ok {
			return i, nil
		}
	case schema.Float:
		if f, ok := asFloat(v); ok {
			return f, nil
		}
	case schema.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, castErrorf("cannot cast %T value %v to %s", v, v, t)
}

// ParseValue parses a textual value, as read from CSV, into t. An empty
// string is a null.
func ParseValue(s string, t schema.Type) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch t {
	case schema.Int:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, castErrorf("cannot parse %q as int", s)
		}
		return i, nil
	case schema.Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, castErrorf("cannot parse %q as float", s)
		}
		return f, nil
	case schema.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, castErrorf("cannot parse %q as bool", s)
		}
		return b, nil
	default:
		return s, nil
	}
}

// InferType guesses the narrowest type able to hold every non-empty value.
func InferType(values []string) schema.Type {
	t := schema.Type("")
	for _, v := range values {
		if v == "" {
			continue
		}
		vt := schema.String
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			vt = schema.Int
		} else if _, err := strconv.ParseFloat(v, 64); err == nil {
			vt = schema.Float
		} else if _, err := strconv.ParseBool(v); err == nil {
			vt = schema.Bool
		}
		switch {
		case t == "":
			t = vt
		case t == vt:
		case (t == schema.Int && vt == schema.Float) || (t == schema.Float && vt == schema.Int):
			t = schema.Float
		default:
			return schema.String
		}
	}
	if t == "" {
		return schema.String
	}
	return t
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return integral(float64(x))
	case float64:
		return integral(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return integral(f)
		}
	}
	return 0, false
}

func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
