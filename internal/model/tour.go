package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/validate"
)

// Tour mirrors the tours table.  RatingsAverage and RatingsQuantity are
// maintained from the reviews table and cannot be set by clients.
type Tour struct {
	ID              uuid.UUID           `json:"-"`
	Name            string              `json:"name"`
	Slug            string              `json:"-"`
	Duration        int                 `json:"duration"`
	MaxGroupSize    int                 `json:"maxGroupSize"`
	Difficulty      string              `json:"difficulty"`
	RatingsAverage  float64             `json:"-"`
	RatingsQuantity int                 `json:"-"`
	Price           float64             `json:"price"`
	PriceDiscount   *float64            `json:"priceDiscount"`
	Summary         string              `json:"summary"`
	Description     string              `json:"description"`
	ImageCover      string              `json:"imageCover"`
	Images          JSONList[string]    `json:"images"`
	StartDates      JSONList[time.Time] `json:"startDates"`
	SecretTour      bool                `json:"secretTour"`
	Guides          JSONList[uuid.UUID] `json:"guides"`
	CreatedAt       time.Time           `json:"-"`
}

// Defaults applied to a tour nobody has reviewed yet.
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)

// NewTour returns a tour carrying the column defaults.
func NewTour() *Tour {
	return &Tour{RatingsAverage: DefaultRatingsAverage, RatingsQuantity: DefaultRatingsQuantity}
}

var (
	tourNameRe   = regexp.MustCompile(`^[\p{L} ]+$`)
	difficultyRe = regexp.MustCompile(`^(easy|medium|difficult)$`)
	slugStripRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize trims text fields and derives the slug from the name.
func (t *Tour) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = Slugify(t.Name)
}

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugStripRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// TourSchema holds the invariants of a stored tour.
var TourSchema = validate.Schema[Tour]{
	Rules: []validate.Rule[Tour]{
		{Field: "name", Value: func(t *Tour) any { return t.Name }, Checks: []validate.Check{
			validate.Required("A tour must have a name"),
			validate.MinLen(10, "A tour name must have more or equal then 10 characters"),
			validate.MaxLen(40, "A tour name must have less or equal then 40 characters"),
			validate.Matches(tourNameRe, "Tour name must only contain characters"),
		}},
		{Field: "duration", Value: func(t *Tour) any { return t.Duration }, Checks: []validate.Check{
			validate.Required("A tour must have a duration"),
			validate.Positive("Duration must be above 0"),
		}},
		{Field: "maxGroupSize", Value: func(t *Tour) any { return t.MaxGroupSize }, Checks: []validate.Check{
			validate.Required("A tour must have a group size"),
			validate.Positive("Group size must be above 0"),
		}},
		{Field: "difficulty", Value: func(t *Tour) any { return t.Difficulty }, Checks: []validate.Check{
			validate.Required("A tour must have a difficulty"),
			validate.Matches(difficultyRe, "Difficulty is either: easy, medium, difficult"),
		}},
		{Field: "ratingsAverage", Value: func(t *Tour) any { return t.RatingsAverage }, Checks: []validate.Check{
			validate.Between(1, 5, "Rating must be between 1.0 and 5.0"),
		}},
		{Field: "price", Value: func(t *Tour) any { return t.Price }, Checks: []validate.Check{
			validate.Required("A tour must have a price"),
			validate.Positive("Price must be above 0"),
		}},
		{Field: "summary", Value: func(t *Tour) any { return t.Summary }, Checks: []validate.Check{
			validate.Required("A tour must have a summary"),
		}},
		{Field: "imageCover", Value: func(t *Tour) any { return t.ImageCover }, Checks: []validate.Check{
			validate.Required("A tour must have a cover image"),
		}},
	},
	Cross: []validate.Rule[Tour]{
		{Field: "priceDiscount", Value: func(t *Tour) any { return t }, Checks: []validate.Check{
			validate.Func("Discount price should be below regular price", func(v any) bool {
				t := v.(Tour)
				return t.PriceDiscount == nil || *t.PriceDiscount < t.Price
			}),
		}},
	},
}
