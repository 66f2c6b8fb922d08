package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/validate"
)

func validTour() *model.Tour {
	t := model.NewTour()
	t.Name = "The Forest Hiker"
	t.Duration = 5
	t.MaxGroupSize = 25
	t.Difficulty = "easy"
	t.Price = 397
	t.Summary = "Breathtaking hike"
	t.ImageCover = "tour-1-cover.jpg"
	return t
}

func violations(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validate.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %v is not validate.Errors", err)
	}
	out := map[string]string{}
	for _, v := range verrs {
		out[v.Field] = v.Message
	}
	return out
}

func TestTourSchema_Valid(t *testing.T) {
	if err := model.TourSchema.Validate(validTour()); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
}

func TestTourSchema_Name(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "A tour must have a name"},
		{"ab", "A tour name must have more or equal then 10 characters"},
		{strings.Repeat("a", 41), "A tour name must have less or equal then 40 characters"},
		{"Tour Number 12345", "Tour name must only contain characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tour := validTour()
			tour.Name = tt.name
			got := violations(t, model.TourSchema.Validate(tour))
			if got["name"] != tt.want {
				t.Errorf("name violation = %q; want %q", got["name"], tt.want)
			}
		})
	}
}

func TestTourSchema_Aggregates(t *testing.T) {
	tour := validTour()
	tour.Name = "ab"
	tour.Difficulty = "extreme"
	tour.Price = 0

	err := model.TourSchema.Validate(tour)
	got := violations(t, err)
	if len(got) != 3 {
		t.Fatalf("violations = %v; want name, difficulty and price", got)
	}
	want := "Invalid input data. A tour name must have more or equal then 10 characters. " +
		"Difficulty is either: easy, medium, difficult. A tour must have a price."
	if err.Error() != want {
		t.Errorf("Error() =\n%q\nwant\n%q", err.Error(), want)
	}
}

func TestTourSchema_PriceDiscount(t *testing.T) {
	below, equal := 300.0, 397.0

	tour := validTour()
	tour.PriceDiscount = &below
	if err := model.TourSchema.Validate(tour); err != nil {
		t.Errorf("discount below price: %v", err)
	}

	tour.PriceDiscount = &equal
	got := violations(t, model.TourSchema.Validate(tour))
	if got["priceDiscount"] != "Discount price should be below regular price" {
		t.Errorf("discount equal to price: violations = %v", got)
	}
}

func TestTourSchema_RatingsAverageRange(t *testing.T) {
	tour := validTour()
	tour.RatingsAverage = 5.5
	got := violations(t, model.TourSchema.Validate(tour))
	if got["ratingsAverage"] == "" {
		t.Errorf("ratingsAverage 5.5 accepted")
	}
}

func TestTour_Normalize(t *testing.T) {
	tour := validTour()
	tour.Name = "  The Sea   Explorer "
	tour.Normalize()
	if tour.Name != "The Sea   Explorer" {
		t.Errorf("Name = %q", tour.Name)
	}
	if tour.Slug != "the-sea-explorer" {
		t.Errorf("Slug = %q; want the-sea-explorer", tour.Slug)
	}
}

func TestNewTour_Defaults(t *testing.T) {
	tour := model.NewTour()
	if tour.RatingsAverage != model.DefaultRatingsAverage || tour.RatingsQuantity != model.DefaultRatingsQuantity {
		t.Errorf("defaults = %v, %v", tour.RatingsAverage, tour.RatingsQuantity)
	}
}

func TestReviewSchema(t *testing.T) {
	r := &model.Review{Review: "Great", Rating: 6}
	got := violations(t, model.ReviewSchema.Validate(r))
	for _, f := range []string{"rating", "tour", "user"} {
		if got[f] == "" {
			t.Errorf("missing violation for %s in %v", f, got)
		}
	}
	if _, ok := got["review"]; ok {
		t.Errorf("unexpected review violation: %v", got)
	}
}

func TestUserSchema_Email(t *testing.T) {
	u := &model.User{Name: "Ann", Email: "not-an-email", Role: model.RoleUser, Password: "hash-of-something"}
	got := violations(t, model.UserSchema.Validate(u))
	if got["email"] != "Please provide a valid email" {
		t.Errorf("violations = %v", got)
	}
	u.Email = "ann@example.com"
	if err := model.UserSchema.Validate(u); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
}
