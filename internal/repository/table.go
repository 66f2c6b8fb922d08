package repository

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/query"
)

// Kind is the storage type of a column, used to convert filter values.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindUUID
	KindJSON
)

// Column maps one entity field to one table column.
type Column[T any] struct {
	Field     string         // external (JSON) name
	Name      string         // SQL column
	Kind      Kind
	Ref       func(*T) any   // pointer to the struct field
	Key       bool           // primary key
	Immutable bool           // never written by Update
	Hidden    bool           // left out of the default projection, still selectable
	Private   bool           // never projected, filtered or sorted
}

// Virtual is a computed field emitted whenever Source is projected.
type Virtual[T any] struct {
	Field  string
	Source string
	Value  func(*T) any
}

// Document is the projected, client-facing form of an entity.
type Document map[string]any

// Table is a generic MySQL mapping for T.
type Table[T any] struct {
	DB       *sql.DB
	name     string
	cols     []Column[T]
	byField  map[string]int
	key      int
	virtuals []Virtual[T]
	prepare  func(e *T, now time.Time)
	now      func() time.Time
}

// NewTable builds a mapping.  prepare runs before every insert and must
// assign the key and creation time.
func NewTable[T any](db *sql.DB, name string, cols []Column[T], prepare func(*T, time.Time), virtuals ...Virtual[T]) *Table[T] {
	t := &Table[T]{
		DB:       db,
		name:     name,
		cols:     cols,
		byField:  make(map[string]int, len(cols)),
		key:      -1,
		virtuals: virtuals,
		prepare:  prepare,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for i, c := range cols {
		t.byField[c.Field] = i
		if c.Key {
			t.key = i
		}
	}
	if t.key < 0 {
		panic("repository: table " + name + " has no key column")
	}
	return t
}

// Name returns the SQL table name.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) selectList() string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func (t *Table[T]) scan(row interface{ Scan(...any) error }) (*T, error) {
	e := new(T)
	dest := make([]any, len(t.cols))
	for i, c := range t.cols {
		dest[i] = c.Ref(e)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// Find runs a compiled list request.
func (t *Table[T]) Find(ctx context.Context, req query.Request) ([]*T, error) {
	if _, err := t.projection(req.Fields); err != nil {
		return nil, err
	}
	where, args, err := t.where(req.Filter)
	if err != nil {
		return nil, err
	}
	order, err := t.orderBy(req.Sort)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + t.selectList() + " FROM " + t.name + where + order
	if req.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, req.Limit, req.Skip)
	}
	rows, err := t.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindOne returns the first row matching every condition.
func (t *Table[T]) FindOne(ctx context.Context, conds ...query.Condition) (*T, error) {
	where, args, err := t.whereInternal(conds)
	if err != nil {
		return nil, err
	}
	row := t.DB.QueryRowContext(ctx, "SELECT "+t.selectList()+" FROM "+t.name+where+" LIMIT 1", args...)
	return t.scan(row)
}

// FindByID loads one row by key.  scope conditions are added to the lookup,
// so a row outside the scope reads as ErrNotFound.
func (t *Table[T]) FindByID(ctx context.Context, id uuid.UUID, scope ...query.Condition) (*T, error) {
	conds := append([]query.Condition{{Field: t.cols[t.key].Field, Op: query.Eq, Value: id}}, scope...)
	return t.FindOne(ctx, conds...)
}

// FindByIDs loads every row whose key is in ids, in no particular order.
func (t *Table[T]) FindByIDs(ctx context.Context, ids []uuid.UUID, scope ...query.Condition) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	where, args, err := t.where(scope)
	if err != nil {
		return nil, err
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	in := t.cols[t.key].Name + " IN (" + marks + ")"
	if where == "" {
		where = " WHERE " + in
	} else {
		where += " AND " + in
	}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := t.DB.QueryContext(ctx, "SELECT "+t.selectList()+" FROM "+t.name+where, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	out := []*T{}
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert writes a new row after prepare has assigned key and timestamps.
func (t *Table[T]) Insert(ctx context.Context, e *T) error {
	if t.prepare != nil {
		t.prepare(e, t.now())
	}
	names := make([]string, len(t.cols))
	args := make([]any, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
		args[i] = value(c.Ref(e))
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(t.cols)), ",")
	_, err := t.DB.ExecContext(ctx,
		"INSERT INTO "+t.name+" ("+strings.Join(names, ", ")+") VALUES ("+marks+")", args...)
	return translate(err)
}

// Update rewrites every mutable column of e in one statement.
func (t *Table[T]) Update(ctx context.Context, e *T) error {
	stmt, args := t.updateStmt(e)
	res, err := t.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

func (t *Table[T]) updateStmt(e *T) (string, []any) {
	var sets []string
	var args []any
	for i, c := range t.cols {
		if i == t.key || c.Immutable {
			continue
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, value(c.Ref(e)))
	}
	args = append(args, value(t.cols[t.key].Ref(e)))
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE " + t.cols[t.key].Name + " = ?", args
}

// Delete removes the row with the given key.
func (t *Table[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := t.DB.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE "+t.cols[t.key].Name+" = ?", id)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

// DeleteAll empties the table.  Used by the seed tool.
func (t *Table[T]) DeleteAll(ctx context.Context) (int64, error) {
	res, err := t.DB.ExecContext(ctx, "DELETE FROM "+t.name)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Project renders e with the requested fields.  An empty list selects every
// column that is neither hidden nor private; a list made only of "-field"
// entries removes those from the default.  The key is always present.
func (t *Table[T]) Project(e *T, fields []string) Document {
	idx, err := t.projection(fields)
	if err != nil {
		idx, _ = t.projection(nil)
	}
	doc := make(Document, len(idx)+len(t.virtuals))
	shown := make(map[string]bool, len(idx))
	for _, i := range idx {
		c := t.cols[i]
		doc[c.Field] = value(c.Ref(e))
		shown[c.Field] = true
	}
	for _, v := range t.virtuals {
		if shown[v.Source] {
			doc[v.Field] = v.Value(e)
		}
	}
	return doc
}

// CheckFields validates a projection list without rendering anything.
func (t *Table[T]) CheckFields(fields []string) error {
	_, err := t.projection(fields)
	return err
}

func (t *Table[T]) projection(fields []string) ([]int, error) {
	exclude := len(fields) > 0
	for _, f := range fields {
		if !strings.HasPrefix(f, "-") {
			exclude = false
		}
	}
	if len(fields) == 0 || exclude {
		drop := map[string]bool{}
		for _, f := range fields {
			name := strings.TrimPrefix(f, "-")
			if _, err := t.column(name); err != nil {
				return nil, err
			}
			drop[name] = true
		}
		var idx []int
		for i, c := range t.cols {
			if c.Private || c.Hidden || (drop[c.Field] && !c.Key) {
				continue
			}
			idx = append(idx, i)
		}
		return idx, nil
	}
	idx := []int{t.key}
	seen := map[int]bool{t.key: true}
	for _, f := range fields {
		c, err := t.column(strings.TrimPrefix(f, "-"))
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(f, "-") {
			continue
		}
		i := t.byField[c.Field]
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// column resolves a public field name.
func (t *Table[T]) column(field string) (*Column[T], error) {
	i, ok := t.byField[field]
	if !ok || t.cols[i].Private {
		return nil, &FieldError{Field: field}
	}
	return &t.cols[i], nil
}

// value dereferences a field pointer into a driver-friendly value.
func value(ref any) any {
	rv := reflect.ValueOf(ref)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ref
	}
	return rv.Elem().Interface()
}
