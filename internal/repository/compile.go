package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/query"
)

var sqlOps = map[query.Op]string{
	query.Eq:  "=",
	query.Gt:  ">",
	query.Gte: ">=",
	query.Lt:  "<",
	query.Lte: "<=",
}

// where compiles client-visible conditions; private columns are rejected.
func (t *Table[T]) where(conds []query.Condition) (string, []any, error) {
	return t.compileWhere(conds, false)
}

// whereInternal compiles conditions built by repository code, which may
// address private columns such as the reset token digest.
func (t *Table[T]) whereInternal(conds []query.Condition) (string, []any, error) {
	return t.compileWhere(conds, true)
}

func (t *Table[T]) compileWhere(conds []query.Condition, private bool) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, cond := range conds {
		var col *Column[T]
		if i, ok := t.byField[cond.Field]; ok && (private || !t.cols[i].Private) {
			col = &t.cols[i]
		}
		if col == nil || col.Kind == KindJSON {
			return "", nil, &FieldError{Field: cond.Field}
		}
		op, ok := sqlOps[cond.Op]
		if !ok {
			op = "="
		}
		v, err := convert(col.Kind, cond.Field, cond.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			if op != "=" {
				return "", nil, &CastError{Field: cond.Field, Value: "null"}
			}
			parts = append(parts, col.Name+" IS NULL")
			continue
		}
		parts = append(parts, col.Name+" "+op+" ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// orderBy compiles the sort list and appends the key as a tie-breaker so
// that pages never overlap.
func (t *Table[T]) orderBy(sorts []query.SortField) (string, error) {
	key := t.cols[t.key]
	parts := make([]string, 0, len(sorts)+1)
	keyed := false
	for _, s := range sorts {
		col, err := t.column(s.Field)
		if err != nil {
			return "", err
		}
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		parts = append(parts, col.Name+dir)
		keyed = keyed || col.Key
	}
	if !keyed {
		parts = append(parts, key.Name+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// convert turns a filter value into the column's Go type.  Strings come
// from the URL; anything else was built in code and passes through.
func convert(kind Kind, field string, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	fail := &CastError{Field: field, Value: s}
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fail
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fail
		}
		return f, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fail
		}
		return b, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fail
	case KindUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fail
		}
		return id, nil
	case KindString:
		return s, nil
	}
	return nil, fmt.Errorf("repository: unsupported column kind %d", kind)
}
