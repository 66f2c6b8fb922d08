package repository

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/query"
)

func TestWhere_ConvertsAndQuotes(t *testing.T) {
	tours := NewTourRepo(nil)
	conds := []query.Condition{
		PublicTours,
		{Field: "duration", Op: query.Gte, Value: "5"},
		{Field: "price", Op: query.Lt, Value: "1500.5"},
		{Field: "difficulty", Op: query.Eq, Value: "easy"},
	}
	sql, args, err := tours.where(conds)
	if err != nil {
		t.Fatalf("where() error = %v", err)
	}
	want := " WHERE secret_tour = ? AND duration >= ? AND price < ? AND difficulty = ?"
	if sql != want {
		t.Errorf("where() sql = %q; want %q", sql, want)
	}
	wantArgs := []any{false, int64(5), 1500.5, "easy"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("where() args = %#v; want %#v", args, wantArgs)
	}
}

func TestWhere_Errors(t *testing.T) {
	tours := NewTourRepo(nil)
	users := NewUserRepo(nil)

	var cast *CastError
	if _, _, err := tours.where([]query.Condition{{Field: "duration", Op: query.Eq, Value: "five"}}); !errors.As(err, &cast) {
		t.Errorf("bad int: error = %v; want CastError", err)
	} else if cast.Error() != "Invalid duration: five" {
		t.Errorf("CastError = %q", cast.Error())
	}

	var field *FieldError
	if _, _, err := tours.where([]query.Condition{{Field: "nope", Op: query.Eq, Value: "1"}}); !errors.As(err, &field) {
		t.Errorf("unknown field: error = %v; want FieldError", err)
	}
	if _, _, err := tours.where([]query.Condition{{Field: "guides", Op: query.Eq, Value: "x"}}); !errors.As(err, &field) {
		t.Errorf("json column: error = %v; want FieldError", err)
	}
	if _, _, err := users.where([]query.Condition{{Field: "password", Op: query.Eq, Value: "x"}}); !errors.As(err, &field) {
		t.Errorf("private column: error = %v; want FieldError", err)
	}
	if _, _, err := users.whereInternal([]query.Condition{{Field: "passwordResetToken", Op: query.Eq, Value: "x"}}); err != nil {
		t.Errorf("internal lookup on private column: error = %v", err)
	}
}

func TestWhere_Null(t *testing.T) {
	users := NewUserRepo(nil)
	sql, args, err := users.whereInternal([]query.Condition{{Field: "passwordResetToken", Op: query.Eq, Value: nil}})
	if err != nil {
		t.Fatal(err)
	}
	if sql != " WHERE password_reset_token IS NULL" || len(args) != 0 {
		t.Errorf("where() = %q %v", sql, args)
	}
}

func TestOrderBy(t *testing.T) {
	tours := NewTourRepo(nil)
	got, err := tours.orderBy([]query.SortField{{Field: "price", Desc: true}, {Field: "name"}})
	if err != nil {
		t.Fatal(err)
	}
	if want := " ORDER BY price DESC, name ASC, id ASC"; got != want {
		t.Errorf("orderBy() = %q; want %q", got, want)
	}

	got, _ = tours.orderBy([]query.SortField{{Field: "id", Desc: true}})
	if want := " ORDER BY id DESC"; got != want {
		t.Errorf("orderBy(id) = %q; want %q", got, want)
	}

	var field *FieldError
	if _, err := tours.orderBy([]query.SortField{{Field: "bogus"}}); !errors.As(err, &field) {
		t.Errorf("orderBy(bogus) error = %v; want FieldError", err)
	}
}

func TestConvert(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		kind Kind
		in   any
		want any
	}{
		{KindInt, "42", int64(42)},
		{KindFloat, "4.5", 4.5},
		{KindBool, "true", true},
		{KindUUID, id.String(), id},
		{KindTime, "2027-04-25", time.Date(2027, 4, 25, 0, 0, 0, 0, time.UTC)},
		{KindString, "x", "x"},
		{KindInt, 7, 7}, // built in code, passes through
	}
	for _, tt := range tests {
		got, err := convert(tt.kind, "f", tt.in)
		if err != nil {
			t.Errorf("convert(%v, %v) error = %v", tt.kind, tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("convert(%v, %v) = %#v; want %#v", tt.kind, tt.in, got, tt.want)
		}
	}
}

func TestProject(t *testing.T) {
	tours := NewTourRepo(nil)
	tour := model.NewTour()
	tour.ID = uuid.New()
	tour.Name = "The Forest Hiker"
	tour.Duration = 14
	tour.Price = 397

	t.Run("default", func(t *testing.T) {
		doc := tours.Project(tour, nil)
		if _, ok := doc["createdAt"]; ok {
			t.Error("hidden createdAt projected by default")
		}
		if doc["id"] != tour.ID || doc["name"] != tour.Name {
			t.Errorf("doc = %v", doc)
		}
		if doc["durationWeeks"] != 2.0 {
			t.Errorf("durationWeeks = %v; want 2", doc["durationWeeks"])
		}
	})

	t.Run("selected", func(t *testing.T) {
		doc := tours.Project(tour, []string{"name", "price"})
		if len(doc) != 3 {
			t.Errorf("doc = %v; want id, name and price", doc)
		}
		if _, ok := doc["durationWeeks"]; ok {
			t.Error("virtual emitted without its source")
		}
	})

	t.Run("excluded", func(t *testing.T) {
		doc := tours.Project(tour, []string{"-summary", "-id"})
		if _, ok := doc["summary"]; ok {
			t.Error("excluded field projected")
		}
		if _, ok := doc["id"]; !ok {
			t.Error("key dropped")
		}
	})

	t.Run("hidden on request", func(t *testing.T) {
		doc := tours.Project(tour, []string{"createdAt"})
		if _, ok := doc["createdAt"]; !ok {
			t.Error("hidden field not projected when asked for")
		}
	})
}

func TestProject_NeverLeaksPrivate(t *testing.T) {
	users := NewUserRepo(nil)
	digest := "d"
	u := &model.User{ID: uuid.New(), Name: "Ann", Password: "hash", PasswordResetToken: &digest}
	for _, fields := range [][]string{nil, {"password"}, {"-name"}} {
		doc := users.Project(u, fields)
		for _, f := range []string{"password", "passwordResetToken", "passwordResetExpires", "active"} {
			if _, ok := doc[f]; ok {
				t.Errorf("Project(%v) leaked %s", fields, f)
			}
		}
	}
	if err := users.CheckFields([]string{"password"}); err == nil {
		t.Error("CheckFields(password) = nil; want FieldError")
	}
}

func TestUpdateStmt_LeavesDerivedColumns(t *testing.T) {
	tour := &model.Tour{ID: uuid.New(), Name: "The Forest Hiker", RatingsAverage: 1, RatingsQuantity: 99}
	stmt, args := NewTourRepo(nil).updateStmt(tour)

	for _, col := range []string{"ratings_average", "ratings_quantity", "created_at"} {
		if strings.Contains(stmt, col) {
			t.Errorf("update writes %s: %s", col, stmt)
		}
	}
	if !strings.HasPrefix(stmt, "UPDATE tours SET name = ?") || !strings.HasSuffix(stmt, " WHERE id = ?") {
		t.Errorf("stmt = %q", stmt)
	}
	if n := strings.Count(stmt, "?"); n != len(args) {
		t.Errorf("%d placeholders, %d args", n, len(args))
	}
}
