package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONList stores a slice in a MySQL JSON column.
type JSONList[E any] []E

// Value encodes the list; a nil list is stored as [].
func (l JSONList[E]) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]E(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON column value.
func (l *JSONList[E]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = JSONList[E]{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into JSONList", src)
	}
	var out []E
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []E{}
	}
	*l = out
	return nil
}
