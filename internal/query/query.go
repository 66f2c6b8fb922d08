// Package query turns URL query parameters into a storage-neutral read
// request: filter conditions, sort order, field projection and a page window.
//
//	GET /tours?duration[gte]=5&difficulty=easy&sort=-price,name&fields=name,price&page=2&limit=10
//
// The Builder stages can run in any order and any number of times; each
// stage recomputes its part of the Request from the original parameters.
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	Eq  Op = "eq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
)

// Defaults applied when the request omits them.
const (
	DefaultSort  = "-createdAt"
	DefaultPage  = 1
	DefaultLimit = 100
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var comparisons = map[string]Op{"gt": Gt, "gte": Gte, "lt": Lt, "lte": Lte}

// Condition compares one field against a value.  Values parsed from the URL
// are strings; callers converting to typed columns must accept both.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// SortField orders by Field, descending when Desc is set.
type SortField struct {
	Field string
	Desc  bool
}

// Request is the compiled read request.
type Request struct {
	Filter []Condition
	Sort   []SortField
	Fields []string // empty selects the default projection
	Skip   int
	Limit  int
}

// Builder accumulates a Request from query parameters.
type Builder struct {
	params url.Values
	scope  []Condition
	req    Request
}

// NewBuilder starts a request over params.  scope conditions are always part
// of the filter, whatever the parameters say.
func NewBuilder(params url.Values, scope ...Condition) *Builder {
	return &Builder{params: params, scope: scope}
}

// Build runs every stage and returns the request.
func Build(params url.Values, scope ...Condition) Request {
	return NewBuilder(params, scope...).Filter().Sort().Fields().Paginate().Request()
}

// Filter keeps every non-reserved parameter as a condition.  A bracketed
// suffix selects a comparison (price[gte]=100); an unknown suffix falls back
// to equality on the base field.
func (b *Builder) Filter() *Builder {
	conds := append([]Condition(nil), b.scope...)
	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if reserved[k] {
			continue
		}
		field, op := splitKey(k)
		if field == "" {
			continue
		}
		for _, v := range b.params[k] {
			conds = append(conds, Condition{Field: field, Op: op, Value: v})
		}
	}
	b.req.Filter = conds
	return b
}

func splitKey(k string) (string, Op) {
	open := strings.IndexByte(k, '[')
	if open < 0 || !strings.HasSuffix(k, "]") {
		return k, Eq
	}
	field, suffix := k[:open], k[open+1:len(k)-1]
	if op, ok := comparisons[suffix]; ok {
		return field, op
	}
	return field, Eq
}

// Sort parses the comma separated sort list; "-" prefixes mean descending.
func (b *Builder) Sort() *Builder {
	raw := b.params.Get("sort")
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}
	var out []SortField
	for _, f := range splitList(raw) {
		desc := strings.HasPrefix(f, "-")
		f = strings.TrimPrefix(f, "-")
		if f == "" {
			continue
		}
		out = append(out, SortField{Field: f, Desc: desc})
	}
	b.req.Sort = out
	return b
}

// Fields parses the comma separated projection list.
func (b *Builder) Fields() *Builder {
	b.req.Fields = splitList(b.params.Get("fields"))
	return b
}

// Paginate derives the skip/limit window from page and limit.  Missing,
// malformed or non-positive values fall back to the defaults.  There is no
// upper bound on limit; a window past math.MaxInt is clamped there and
// selects nothing.
func (b *Builder) Paginate() *Builder {
	page := positiveInt(b.params.Get("page"), DefaultPage)
	limit := positiveInt(b.params.Get("limit"), DefaultLimit)
	if page-1 > math.MaxInt/limit {
		b.req.Skip = math.MaxInt
	} else {
		b.req.Skip = (page - 1) * limit
	}
	b.req.Limit = limit
	return b
}

// Request returns a copy of the request built so far.
func (b *Builder) Request() Request {
	r := b.req
	r.Filter = append([]Condition(nil), b.req.Filter...)
	r.Sort = append([]SortField(nil), b.req.Sort...)
	r.Fields = append([]string(nil), b.req.Fields...)
	return r
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
