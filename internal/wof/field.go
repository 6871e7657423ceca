package wof

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Field resolves one candidate source path on a document. The bool is
// false when the candidate is absent: a missing key, JSON null, an empty
// string or a value of the wrong type.
type Field[T any] func(d *Document) (T, bool)

// First evaluates fields left to right and returns the first value that
// resolves, or nil when none do.
func First[T any](d *Document, fields ...Field[T]) *T {
	for _, f := range fields {
		if v, ok := f(d); ok {
			return &v
		}
	}
	return nil
}

// Str resolves a string property.
func Str(keys ...string) Field[string] {
	return func(d *Document) (string, bool) {
		return asString(d.Property(keys...))
	}
}

// StrFrom resolves a string property with its first skip characters
// dropped. Source fields like qs:a1 carry a one-character marker prefix.
func StrFrom(skip int, keys ...string) Field[string] {
	return func(d *Document) (string, bool) {
		s, ok := asString(d.Property(keys...))
		if !ok {
			return "", false
		}
		r := []rune(s)
		if len(r) <= skip {
			return "", false
		}
		return string(r[skip:]), true
	}
}

// Int resolves an integer property. Numeric strings are accepted.
func Int(keys ...string) Field[int64] {
	return func(d *Document) (int64, bool) {
		return asInt(d.Property(keys...))
	}
}

// PositiveInt resolves an integer property, treating values <= 0 as
// absent. WOF uses -1 for unknown hierarchy ids.
func PositiveInt(keys ...string) Field[int64] {
	return func(d *Document) (int64, bool) {
		v, ok := asInt(d.Property(keys...))
		if !ok || v <= 0 {
			return 0, false
		}
		return v, true
	}
}

// Float resolves a floating point property. Numeric strings are accepted.
func Float(keys ...string) Field[float64] {
	return func(d *Document) (float64, bool) {
		r := d.Property(keys...)
		switch r.Type {
		case gjson.Number:
			return r.Num, true
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
			if err != nil {
				return 0, false
			}
			return f, true
		}
		return 0, false
	}
}

func asString(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return "", false
		}
		return s, true
	case gjson.Number:
		// Concordance ids are sometimes numbers in the source. Canonical
		// form keeps 1e3 and 1000 the same key.
		if r.Num == math.Trunc(r.Num) && math.Abs(r.Num) < math.MaxInt64 {
			return strconv.FormatInt(r.Int(), 10), true
		}
		return strconv.FormatFloat(r.Num, 'f', -1, 64), true
	}
	return "", false
}

func asInt(r gjson.Result) (int64, bool) {
	switch r.Type {
	case gjson.Number:
		if r.Num != float64(int64(r.Num)) {
			return 0, false
		}
		return r.Int(), true
	case gjson.String:
		i, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
