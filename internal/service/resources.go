package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/query"
	"github.com/iliyamo/natours-api/internal/repository"
)

// UserFinder loads users for population.
type UserFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID, scope ...query.Condition) ([]*model.User, error)
	Project(u *model.User, fields []string) repository.Document
}

// ReviewFinder loads reviews for population.
type ReviewFinder interface {
	Find(ctx context.Context, req query.Request) ([]*model.Review, error)
	Project(r *model.Review, fields []string) repository.Document
}

var (
	guideFields    = []string{"name", "email", "photo", "role"}
	reviewerFields = []string{"name", "photo"}
)

// NewTourFactory wires the tour resource: public scope, slug derivation and
// population of reviews and guides on single reads.
func NewTourFactory(repo Repository[model.Tour], reviews ReviewFinder, users UserFinder) *Factory[model.Tour] {
	return NewFactory(repo, Options[model.Tour]{
		Name:        "tour",
		Scope:       []query.Condition{repository.PublicTours},
		Schema:      model.TourSchema,
		New:         model.NewTour,
		BeforeWrite: normalizeTour,
		Populate: []Populator[model.Tour]{
			populateGuides(users),
			populateReviews(reviews, users),
		},
	})
}

func normalizeTour(t *model.Tour) {
	t.Normalize()
	for i, d := range t.StartDates {
		t.StartDates[i] = d.UTC()
	}
}

func populateGuides(users UserFinder) Populator[model.Tour] {
	return func(ctx context.Context, t *model.Tour, doc repository.Document) error {
		found, err := users.FindByIDs(ctx, t.Guides, repository.ActiveUsers)
		if err != nil {
			return storageError(err)
		}
		byID := make(map[uuid.UUID]*model.User, len(found))
		for _, u := range found {
			byID[u.ID] = u
		}
		guides := make([]repository.Document, 0, len(t.Guides))
		for _, id := range t.Guides {
			if u, ok := byID[id]; ok {
				guides = append(guides, users.Project(u, guideFields))
			}
		}
		doc["guides"] = guides
		return nil
	}
}

func populateReviews(reviews ReviewFinder, users UserFinder) Populator[model.Tour] {
	withUser := populateReviewer(users)
	return func(ctx context.Context, t *model.Tour, doc repository.Document) error {
		req := query.Request{
			Filter: []query.Condition{{Field: "tour", Op: query.Eq, Value: t.ID}},
			Sort:   []query.SortField{{Field: "createdAt", Desc: true}},
		}
		found, err := reviews.Find(ctx, req)
		if err != nil {
			return storageError(err)
		}
		out := make([]repository.Document, 0, len(found))
		for _, r := range found {
			rd := reviews.Project(r, nil)
			if err := withUser(ctx, r, rd); err != nil {
				return err
			}
			out = append(out, rd)
		}
		doc["reviews"] = out
		return nil
	}
}

// populateReviewer replaces the user id of a review with name and photo.
func populateReviewer(users UserFinder) Populator[model.Review] {
	return func(ctx context.Context, r *model.Review, doc repository.Document) error {
		found, err := users.FindByIDs(ctx, []uuid.UUID{r.User}, repository.ActiveUsers)
		if err != nil {
			return storageError(err)
		}
		if len(found) == 0 {
			doc["user"] = nil
			return nil
		}
		doc["user"] = users.Project(found[0], reviewerFields)
		return nil
	}
}

// NewReviewFactory wires the review resource.  Every write recalculates the
// ratings of the affected tours; update and delete are limited to the author
// unless the caller is an admin.
func NewReviewFactory(repo Repository[model.Review], users UserFinder, ratings *RatingAggregator) *Factory[model.Review] {
	reviewer := populateReviewer(users)
	return NewFactory(repo, Options[model.Review]{
		Name:         "review",
		Schema:       model.ReviewSchema,
		BeforeWrite:  (*model.Review).Normalize,
		Populate:     []Populator[model.Review]{reviewer},
		PopulateList: []Populator[model.Review]{reviewer},
		Guard:        ReviewOwner,
		Fixed: func(orig, patched *model.Review) {
			patched.User = orig.User
		},
		AfterWrite: []Hook[model.Review]{ratings.ReviewHook},
	})
}

// ReviewOwner admits admins and the author of r.
func ReviewOwner(ctx context.Context, r *model.Review) error {
	u, ok := model.CallerFrom(ctx)
	if !ok {
		return apperror.NewUnauthorized("You are not logged in! Please log in to get access.")
	}
	if u.Role == model.RoleAdmin || u.ID == r.User {
		return nil
	}
	return apperror.NewForbidden("You can only change your own reviews")
}

// NewUserFactory wires the user resource.  Accounts are only created through
// signup, and deactivated users are invisible.  With ratings set, deleting a
// user recalculates every tour they reviewed.
func NewUserFactory(repo Repository[model.User], reviewed AuthorTours, ratings *RatingAggregator) *Factory[model.User] {
	opts := Options[model.User]{
		Name:   "user",
		Scope:  []query.Condition{repository.ActiveUsers},
		Schema: model.UserSchema,
		BeforeWrite: func(u *model.User) {
			u.Name = strings.TrimSpace(u.Name)
			u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		},
		CreateDisabled: "This route is not defined! Please use /signup instead",
	}
	if reviewed != nil && ratings != nil {
		opts.Cascade = ratings.AuthorCascade(reviewed)
	}
	return NewFactory(repo, opts)
}
