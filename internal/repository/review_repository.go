package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/model"
)

var reviewColumns = []Column[model.Review]{
	{Field: "id", Name: "id", Kind: KindUUID, Key: true, Ref: func(r *model.Review) any { return &r.ID }},
	{Field: "review", Name: "review", Kind: KindString, Ref: func(r *model.Review) any { return &r.Review }},
	{Field: "rating", Name: "rating", Kind: KindFloat, Ref: func(r *model.Review) any { return &r.Rating }},
	{Field: "createdAt", Name: "created_at", Kind: KindTime, Immutable: true, Ref: func(r *model.Review) any { return &r.CreatedAt }},
	{Field: "tour", Name: "tour_id", Kind: KindUUID, Ref: func(r *model.Review) any { return &r.Tour }},
	{Field: "user", Name: "user_id", Kind: KindUUID, Ref: func(r *model.Review) any { return &r.User }},
}

// ReviewRepo persists reviews.
type ReviewRepo struct {
	*Table[model.Review]
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{Table: NewTable(db, "reviews", reviewColumns, func(r *model.Review, now time.Time) {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = now
	})}
}

// RatingStats returns the number of reviews of a tour and their mean rating.
// The mean is zero when there are none.
func (r *ReviewRepo) RatingStats(ctx context.Context, tourID uuid.UUID) (int, float64, error) {
	var (
		n   int
		avg sql.NullFloat64
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(rating) FROM reviews WHERE tour_id=?", tourID).Scan(&n, &avg)
	if err != nil {
		return 0, 0, translate(err)
	}
	return n, avg.Float64, nil
}

// ToursReviewedBy lists the distinct tours a user has reviewed.
func (r *ReviewRepo) ToursReviewedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT DISTINCT tour_id FROM reviews WHERE user_id=?", userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
