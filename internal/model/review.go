package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/validate"
)

// Review mirrors the reviews table.  A user reviews a tour at most once.
type Review struct {
	ID        uuid.UUID `json:"-"`
	Review    string    `json:"review"`
	Rating    float64   `json:"rating"`
	Tour      uuid.UUID `json:"tour"`
	User      uuid.UUID `json:"user"`
	CreatedAt time.Time `json:"-"`
}

// Normalize trims the review text.
func (r *Review) Normalize() { r.Review = strings.TrimSpace(r.Review) }

// ReviewSchema holds the invariants of a stored review.
var ReviewSchema = validate.Schema[Review]{
	Rules: []validate.Rule[Review]{
		{Field: "review", Value: func(r *Review) any { return r.Review }, Checks: []validate.Check{
			validate.Required("Review can not be empty!"),
		}},
		{Field: "rating", Value: func(r *Review) any { return r.Rating }, Checks: []validate.Check{
			validate.Required("A review must have a rating"),
			validate.Between(1, 5, "Rating must be between 1 and 5"),
		}},
		{Field: "tour", Value: func(r *Review) any { return r.Tour }, Checks: []validate.Check{
			validate.Required("Review must belong to a tour."),
		}},
		{Field: "user", Value: func(r *Review) any { return r.User }, Checks: []validate.Check{
			validate.Required("Review must belong to a user"),
		}},
	},
}
