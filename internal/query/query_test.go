package query_test

import (
	"math"
	"net/url"
	"reflect"
	"strconv"
	"testing"

	"github.com/iliyamo/natours-api/internal/query"
)

func TestBuild_FilterSortFieldsPage(t *testing.T) {
	params, _ := url.ParseQuery("duration[gte]=5&difficulty=easy&sort=-price,name&fields=name,price&page=2&limit=10")
	got := query.Build(params)

	want := query.Request{
		Filter: []query.Condition{
			{Field: "difficulty", Op: query.Eq, Value: "easy"},
			{Field: "duration", Op: query.Gte, Value: "5"},
		},
		Sort:   []query.SortField{{Field: "price", Desc: true}, {Field: "name"}},
		Fields: []string{"name", "price"},
		Skip:   10,
		Limit:  10,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestBuild_Defaults(t *testing.T) {
	got := query.Build(url.Values{})
	if len(got.Filter) != 0 {
		t.Errorf("Filter = %v; want empty", got.Filter)
	}
	if want := []query.SortField{{Field: "createdAt", Desc: true}}; !reflect.DeepEqual(got.Sort, want) {
		t.Errorf("Sort = %v; want %v", got.Sort, want)
	}
	if len(got.Fields) != 0 {
		t.Errorf("Fields = %v; want empty", got.Fields)
	}
	if got.Skip != 0 || got.Limit != query.DefaultLimit {
		t.Errorf("Skip, Limit = %d, %d; want 0, %d", got.Skip, got.Limit, query.DefaultLimit)
	}
}

func TestBuild_Operators(t *testing.T) {
	tests := []struct {
		key    string
		field  string
		wantOp query.Op
	}{
		{"price[gt]", "price", query.Gt},
		{"price[gte]", "price", query.Gte},
		{"price[lt]", "price", query.Lt},
		{"price[lte]", "price", query.Lte},
		{"price[regex]", "price", query.Eq},
		{"price", "price", query.Eq},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := query.Build(url.Values{tt.key: {"100"}})
			if len(got.Filter) != 1 {
				t.Fatalf("Filter = %v; want one condition", got.Filter)
			}
			c := got.Filter[0]
			if c.Field != tt.field || c.Op != tt.wantOp {
				t.Errorf("condition = %s %s; want %s %s", c.Field, c.Op, tt.field, tt.wantOp)
			}
		})
	}
}

func TestBuild_BadPagination(t *testing.T) {
	for _, raw := range []string{"page=0&limit=-3", "page=abc&limit=xyz", "page=&limit="} {
		params, _ := url.ParseQuery(raw)
		got := query.Build(params)
		if got.Skip != 0 || got.Limit != query.DefaultLimit {
			t.Errorf("%s: Skip, Limit = %d, %d; want defaults", raw, got.Skip, got.Limit)
		}
	}
}

func TestBuild_LimitNotCapped(t *testing.T) {
	got := query.Build(url.Values{"limit": {"100000"}, "page": {"3"}})
	if got.Limit != 100000 || got.Skip != 200000 {
		t.Errorf("Skip, Limit = %d, %d; want 200000, 100000", got.Skip, got.Limit)
	}
}

func TestBuild_PageOverflowIsClamped(t *testing.T) {
	tests := []struct {
		page, limit string
		wantSkip    int
	}{
		{"92233720368547759", "1000", math.MaxInt},
		{strconv.Itoa(math.MaxInt), "2", math.MaxInt},
		{strconv.Itoa(math.MaxInt/10 + 1), "10", math.MaxInt/10*10},
	}
	for _, tt := range tests {
		got := query.Build(url.Values{"page": {tt.page}, "limit": {tt.limit}})
		if got.Skip != tt.wantSkip || got.Skip < 0 {
			t.Errorf("page=%s limit=%s: Skip = %d; want %d", tt.page, tt.limit, got.Skip, tt.wantSkip)
		}
	}
}

func TestBuild_ScopeCannotBeDropped(t *testing.T) {
	scope := query.Condition{Field: "secretTour", Op: query.Eq, Value: false}
	got := query.Build(url.Values{"secretTour": {"true"}}, scope)

	if len(got.Filter) != 2 || got.Filter[0] != scope {
		t.Fatalf("Filter = %v; want scope first and the request condition after", got.Filter)
	}
}

func TestBuilder_StagesAreIndependent(t *testing.T) {
	params := url.Values{"sort": {"price"}, "name": {"x"}}
	b := query.NewBuilder(params)
	onlySort := b.Sort().Request()
	if len(onlySort.Filter) != 0 {
		t.Errorf("Filter ran without being asked: %v", onlySort.Filter)
	}
	full := b.Filter().Sort().Request()
	if len(full.Filter) != 1 || len(full.Sort) != 1 {
		t.Errorf("rerunning stages gave %+v", full)
	}
}

func TestBuild_RepeatedKey(t *testing.T) {
	got := query.Build(url.Values{"difficulty": {"easy", "medium"}})
	if len(got.Filter) != 2 {
		t.Errorf("Filter = %v; want both values", got.Filter)
	}
}
