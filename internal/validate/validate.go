// Package validate declares per-entity validation rules as data.
//
// A Schema lists one Rule per field; each rule reads the field through an
// accessor and runs its checks in order, stopping at the first failure.
// Validate reports every failing field at once.
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var engine = validator.New()

// Violation is a single failed rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors aggregates the violations found in one validation pass.
type Errors []Violation

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = strings.TrimSuffix(v.Message, ".")
	}
	out := "Invalid input data. " + strings.Join(msgs, ". ")
	if !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}

// Check inspects a field value and returns a message when it fails.
type Check struct {
	// Always makes the check run on zero values too.
	Always bool
	Test   func(v any) bool
	Msg    string
}

// Rule binds checks to one field of T.
type Rule[T any] struct {
	Field  string
	Value  func(*T) any
	Checks []Check
}

// Schema is the full rule set for T.  Cross holds rules spanning several
// fields; they run after the per-field rules and only when those passed for
// the fields they name.
type Schema[T any] struct {
	Rules []Rule[T]
	Cross []Rule[T]
}

// Validate runs the schema against e and returns Errors or nil.
func (s Schema[T]) Validate(e *T) error {
	var errs Errors
	failed := map[string]bool{}
	for _, r := range s.Rules {
		if msg, ok := run(r, e); !ok {
			errs = append(errs, Violation{Field: r.Field, Message: msg})
			failed[r.Field] = true
		}
	}
	for _, r := range s.Cross {
		if failed[r.Field] {
			continue
		}
		if msg, ok := run(r, e); !ok {
			errs = append(errs, Violation{Field: r.Field, Message: msg})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func run[T any](r Rule[T], e *T) (string, bool) {
	v := deref(r.Value(e))
	zero := isZero(v)
	for _, c := range r.Checks {
		if zero && !c.Always {
			continue
		}
		if !c.Test(v) {
			return c.Msg, false
		}
	}
	return "", true
}

// Required fails on nil, empty or whitespace-only values.
func Required(msg string) Check {
	return Check{Always: true, Msg: msg, Test: func(v any) bool {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s) != ""
		}
		return !isZero(v)
	}}
}

// MinLen requires at least n characters.
func MinLen(n int, msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		s, _ := v.(string)
		return utf8.RuneCountInString(s) >= n
	}}
}

// MaxLen allows at most n characters.
func MaxLen(n int, msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		s, _ := v.(string)
		return utf8.RuneCountInString(s) <= n
	}}
}

// Matches requires the string to match re.
func Matches(re *regexp.Regexp, msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		s, _ := v.(string)
		return re.MatchString(s)
	}}
}

// OneOf requires the string to be one of values.
func OneOf(msg string, values ...string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		s, _ := v.(string)
		for _, x := range values {
			if s == x {
				return true
			}
		}
		return false
	}}
}

// Between requires a number within [min, max].
func Between(min, max float64, msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		f, ok := number(v)
		return ok && f >= min && f <= max
	}}
}

// Positive requires a number greater than zero.
func Positive(msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		f, ok := number(v)
		return ok && f > 0
	}}
}

// Email requires a syntactically valid address.
func Email(msg string) Check {
	return Check{Msg: msg, Test: func(v any) bool {
		return engine.Var(v, "required,email") == nil
	}}
}

// Func adapts an arbitrary predicate.
func Func(msg string, fn func(v any) bool) Check {
	return Check{Msg: msg, Test: fn}
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return rv.IsZero()
}
