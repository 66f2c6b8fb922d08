package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/model"
)

// ReviewStats reports the review count and mean rating of a tour.
type ReviewStats interface {
	RatingStats(ctx context.Context, tourID uuid.UUID) (int, float64, error)
}

// RatingWriter stores the derived rating columns of a tour.
type RatingWriter interface {
	SetRatings(ctx context.Context, tourID uuid.UUID, avg float64, qty int) error
}

// AuthorTours lists the tours a user has reviewed.
type AuthorTours interface {
	ToursReviewedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// RatingAggregator keeps ratingsAverage and ratingsQuantity of tours in
// line with their reviews.
//
// Two concurrent review writes on the same tour can each read the review
// set before the other commits; the last SetRatings wins.  Any later write
// on that tour corrects the figures.
type RatingAggregator struct {
	reviews ReviewStats
	tours   RatingWriter
	logger  *slog.Logger
}

func NewRatingAggregator(reviews ReviewStats, tours RatingWriter, logger *slog.Logger) *RatingAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingAggregator{reviews: reviews, tours: tours, logger: logger}
}

// Recalculate recomputes the ratings of one tour from its current reviews.
// A tour without reviews goes back to the defaults.
func (a *RatingAggregator) Recalculate(ctx context.Context, tourID uuid.UUID) error {
	n, avg, err := a.reviews.RatingStats(ctx, tourID)
	if err != nil {
		return err
	}
	if n == 0 {
		return a.tours.SetRatings(ctx, tourID, model.DefaultRatingsAverage, model.DefaultRatingsQuantity)
	}
	return a.tours.SetRatings(ctx, tourID, avg, n)
}

// ReviewHook recalculates every tour a review mutation touched: the old
// tour and, when the review moved, the new one.  Failures are logged; the
// review write has already committed.
func (a *RatingAggregator) ReviewHook(ctx context.Context, before, after *model.Review) {
	seen := map[uuid.UUID]bool{}
	for _, r := range []*model.Review{before, after} {
		if r == nil || r.Tour == uuid.Nil || seen[r.Tour] {
			continue
		}
		seen[r.Tour] = true
		if err := a.Recalculate(ctx, r.Tour); err != nil {
			a.logger.Error("recalculate tour ratings", "tour_id", r.Tour, "err", err)
		}
	}
}

// AuthorCascade returns a user delete cascade.  Deleting a user removes their
// reviews in storage without passing through ReviewHook, so the tours they
// reviewed are collected first and recalculated after the delete.
func (a *RatingAggregator) AuthorCascade(reviewed AuthorTours) func(context.Context, *model.User) (func(context.Context), error) {
	return func(ctx context.Context, u *model.User) (func(context.Context), error) {
		tours, err := reviewed.ToursReviewedBy(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) {
			for _, id := range tours {
				if err := a.Recalculate(ctx, id); err != nil {
					a.logger.Error("recalculate tour ratings", "tour_id", id, "err", err)
				}
			}
		}, nil
	}
}
