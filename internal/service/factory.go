// Package service holds the business layer shared by the HTTP handlers and
// the command line tools: the generic resource factory, rating aggregation
// and the outbound mail publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/query"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/validate"
)

// Repository is the storage a Factory needs for T.
type Repository[T any] interface {
	Find(ctx context.Context, req query.Request) ([]*T, error)
	FindByID(ctx context.Context, id uuid.UUID, scope ...query.Condition) (*T, error)
	Insert(ctx context.Context, e *T) error
	Update(ctx context.Context, e *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	Project(e *T, fields []string) repository.Document
}

// Populator adds joined data to a rendered document.
type Populator[T any] func(ctx context.Context, e *T, doc repository.Document) error

// Hook runs after a committed write.  before is nil on create, after is nil
// on delete.
type Hook[T any] func(ctx context.Context, before, after *T)

// Options configure a Factory.
type Options[T any] struct {
	Name           string // singular noun used in messages
	Scope          []query.Condition
	Schema         validate.Schema[T]
	New            func() *T
	Populate       []Populator[T] // single document reads
	PopulateList   []Populator[T] // list reads
	BeforeWrite    func(e *T)
	Guard          func(ctx context.Context, e *T) error
	Fixed          func(orig, patched *T) // restores fields a patch may not change
	AfterWrite     []Hook[T]
	CreateDisabled string

	// Cascade runs before a delete; the returned func runs once the delete
	// has committed.  For rows the store removes along with e.
	Cascade func(ctx context.Context, e *T) (func(context.Context), error)
}

// Factory implements list, read, create, update and delete for T.
type Factory[T any] struct {
	repo Repository[T]
	opts Options[T]
}

func NewFactory[T any](repo Repository[T], opts Options[T]) *Factory[T] {
	if opts.Name == "" {
		opts.Name = "document"
	}
	if opts.New == nil {
		opts.New = func() *T { return new(T) }
	}
	return &Factory[T]{repo: repo, opts: opts}
}

// Name returns the singular noun of the resource.
func (f *Factory[T]) Name() string { return f.opts.Name }

// New returns a zero entity carrying the resource defaults.
func (f *Factory[T]) New() *T { return f.opts.New() }

// List runs a query built from params.  extra conditions narrow the result
// further, e.g. reviews of one tour.
func (f *Factory[T]) List(ctx context.Context, params url.Values, extra ...query.Condition) ([]repository.Document, error) {
	scope := append(append([]query.Condition(nil), f.opts.Scope...), extra...)
	req := query.Build(params, scope...)
	items, err := f.repo.Find(ctx, req)
	if err != nil {
		return nil, storageError(err)
	}
	docs := make([]repository.Document, 0, len(items))
	for _, e := range items {
		doc := f.repo.Project(e, req.Fields)
		for _, p := range f.opts.PopulateList {
			if err := p(ctx, e, doc); err != nil {
				return nil, err
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Load fetches one entity under the factory scope.
func (f *Factory[T]) Load(ctx context.Context, rawID string) (*T, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	e, err := f.repo.FindByID(ctx, id, f.opts.Scope...)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, f.notFound()
	}
	if err != nil {
		return nil, storageError(err)
	}
	return e, nil
}

// GetOne fetches and renders one entity with its populated relations.
func (f *Factory[T]) GetOne(ctx context.Context, rawID string) (repository.Document, error) {
	e, err := f.Load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return f.Render(ctx, e)
}

// Render projects e and runs the single-document populators.
func (f *Factory[T]) Render(ctx context.Context, e *T) (repository.Document, error) {
	doc := f.repo.Project(e, nil)
	for _, p := range f.opts.Populate {
		if err := p(ctx, e, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Create validates and stores e.
func (f *Factory[T]) Create(ctx context.Context, e *T) (repository.Document, error) {
	if f.opts.CreateDisabled != "" {
		return nil, apperror.NewBadRequest(f.opts.CreateDisabled)
	}
	if f.opts.BeforeWrite != nil {
		f.opts.BeforeWrite(e)
	}
	if err := f.opts.Schema.Validate(e); err != nil {
		return nil, apperror.NewValidation(err.Error(), err)
	}
	if err := f.repo.Insert(ctx, e); err != nil {
		return nil, storageError(err)
	}
	f.after(ctx, nil, e)
	return f.repo.Project(e, nil), nil
}

// Update loads the entity, applies the patch, re-validates the result and
// writes it back in one statement.
func (f *Factory[T]) Update(ctx context.Context, rawID string, apply func(*T) error) (repository.Document, error) {
	current, err := f.Load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if f.opts.Guard != nil {
		if err := f.opts.Guard(ctx, current); err != nil {
			return nil, err
		}
	}
	before := *current
	patched := current
	if err := apply(patched); err != nil {
		return nil, err
	}
	if f.opts.Fixed != nil {
		f.opts.Fixed(&before, patched)
	}
	if f.opts.BeforeWrite != nil {
		f.opts.BeforeWrite(patched)
	}
	if err := f.opts.Schema.Validate(patched); err != nil {
		return nil, apperror.NewValidation(err.Error(), err)
	}
	if err := f.repo.Update(ctx, patched); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, f.notFound()
		}
		return nil, storageError(err)
	}
	f.after(ctx, &before, patched)
	return f.repo.Project(patched, nil), nil
}

// Delete removes the entity.
func (f *Factory[T]) Delete(ctx context.Context, rawID string) error {
	current, err := f.Load(ctx, rawID)
	if err != nil {
		return err
	}
	if f.opts.Guard != nil {
		if err := f.opts.Guard(ctx, current); err != nil {
			return err
		}
	}
	var cascade func(context.Context)
	if f.opts.Cascade != nil {
		if cascade, err = f.opts.Cascade(ctx, current); err != nil {
			return storageError(err)
		}
	}
	id, _ := ParseID(rawID)
	if err := f.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return f.notFound()
		}
		return storageError(err)
	}
	f.after(ctx, current, nil)
	if cascade != nil {
		cascade(ctx)
	}
	return nil
}

func (f *Factory[T]) after(ctx context.Context, before, after *T) {
	for _, h := range f.opts.AfterWrite {
		h(ctx, before, after)
	}
}

func (f *Factory[T]) notFound() error {
	return apperror.NewNotFound(fmt.Sprintf("No %s found with that ID", f.opts.Name))
}

// ParseID parses an entity id from a path parameter.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &repository.CastError{Field: "id", Value: raw}
	}
	return id, nil
}

// storageError leaves typed repository errors for the HTTP layer to
// translate and wraps everything else as internal.
func storageError(err error) error {
	var (
		cast  *repository.CastError
		field *repository.FieldError
		dup   *repository.DuplicateKeyError
		verrs validate.Errors
	)
	switch {
	case errors.As(err, &cast), errors.As(err, &field), errors.As(err, &dup), errors.As(err, &verrs):
		return err
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrMissingReference):
		return err
	}
	return apperror.NewInternal("storage failure", err)
}
