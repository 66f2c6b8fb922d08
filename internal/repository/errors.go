// Package repository maps entities onto MySQL tables.  Errors returned here
// are either sentinels (ErrNotFound), typed errors carrying client-safe detail
// (CastError, FieldError, DuplicateKeyError) or raw driver errors.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/natours-api/internal/validate"
)

// ErrNotFound is returned when no row matches the id and scope.
var ErrNotFound = errors.New("not found")

// ErrMissingReference is returned when a write names a row that does not
// exist, such as a review for an unknown tour.
var ErrMissingReference = errors.New("referenced document does not exist")

// CastError reports a value that cannot be converted to a column's type,
// including malformed ids.
type CastError struct {
	Field string
	Value string
}

func (e *CastError) Error() string { return fmt.Sprintf("Invalid %s: %s", e.Field, e.Value) }

// FieldError reports a filter, sort or projection on an unknown field.
type FieldError struct{ Field string }

func (e *FieldError) Error() string { return "Invalid field: " + e.Field }

// DuplicateKeyError wraps MySQL error 1062.
type DuplicateKeyError struct {
	Value string
	Key   string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate value %q for key %s", e.Value, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

var (
	dupRe  = regexp.MustCompile(`Duplicate entry '(.*)' for key '([^']*)'`)
	longRe = regexp.MustCompile(`Data too long for column '([^']*)'`)
)

// translate maps driver errors onto the package's error types.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		d := &DuplicateKeyError{Err: err}
		if m := dupRe.FindStringSubmatch(me.Message); m != nil {
			d.Value, d.Key = m[1], m[2]
		}
		return d
	}
	if errors.As(err, &me) && me.Number == 1406 {
		field := "value"
		if m := longRe.FindStringSubmatch(me.Message); m != nil {
			field = m[1]
		}
		return validate.Errors{{Field: field, Message: "Value is too long for " + field}}
	}
	if errors.As(err, &me) && me.Number == 1452 {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	return err
}
