package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/query"
)

// PublicTours is the predicate every tour read carries.
var PublicTours = query.Condition{Field: "secretTour", Op: query.Eq, Value: false}

var tourColumns = []Column[model.Tour]{
	{Field: "id", Name: "id", Kind: KindUUID, Key: true, Ref: func(t *model.Tour) any { return &t.ID }},
	{Field: "name", Name: "name", Kind: KindString, Ref: func(t *model.Tour) any { return &t.Name }},
	{Field: "slug", Name: "slug", Kind: KindString, Ref: func(t *model.Tour) any { return &t.Slug }},
	{Field: "duration", Name: "duration", Kind: KindInt, Ref: func(t *model.Tour) any { return &t.Duration }},
	{Field: "maxGroupSize", Name: "max_group_size", Kind: KindInt, Ref: func(t *model.Tour) any { return &t.MaxGroupSize }},
	{Field: "difficulty", Name: "difficulty", Kind: KindString, Ref: func(t *model.Tour) any { return &t.Difficulty }},
	{Field: "ratingsAverage", Name: "ratings_average", Kind: KindFloat, Immutable: true, Ref: func(t *model.Tour) any { return &t.RatingsAverage }},
	{Field: "ratingsQuantity", Name: "ratings_quantity", Kind: KindInt, Immutable: true, Ref: func(t *model.Tour) any { return &t.RatingsQuantity }},
	{Field: "price", Name: "price", Kind: KindFloat, Ref: func(t *model.Tour) any { return &t.Price }},
	{Field: "priceDiscount", Name: "price_discount", Kind: KindFloat, Ref: func(t *model.Tour) any { return &t.PriceDiscount }},
	{Field: "summary", Name: "summary", Kind: KindString, Ref: func(t *model.Tour) any { return &t.Summary }},
	{Field: "description", Name: "description", Kind: KindString, Ref: func(t *model.Tour) any { return &t.Description }},
	{Field: "imageCover", Name: "image_cover", Kind: KindString, Ref: func(t *model.Tour) any { return &t.ImageCover }},
	{Field: "images", Name: "images", Kind: KindJSON, Ref: func(t *model.Tour) any { return &t.Images }},
	{Field: "startDates", Name: "start_dates", Kind: KindJSON, Ref: func(t *model.Tour) any { return &t.StartDates }},
	{Field: "secretTour", Name: "secret_tour", Kind: KindBool, Ref: func(t *model.Tour) any { return &t.SecretTour }},
	{Field: "guides", Name: "guides", Kind: KindJSON, Ref: func(t *model.Tour) any { return &t.Guides }},
	{Field: "createdAt", Name: "created_at", Kind: KindTime, Immutable: true, Hidden: true, Ref: func(t *model.Tour) any { return &t.CreatedAt }},
}

var tourVirtuals = []Virtual[model.Tour]{
	{Field: "durationWeeks", Source: "duration", Value: func(t *model.Tour) any { return float64(t.Duration) / 7 }},
}

// TourRepo persists tours and runs the reporting queries.
type TourRepo struct {
	*Table[model.Tour]
}

func NewTourRepo(db *sql.DB) *TourRepo {
	return &TourRepo{Table: NewTable(db, "tours", tourColumns, func(t *model.Tour, now time.Time) {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
	}, tourVirtuals...)}
}

// SetRatings overwrites the derived rating columns of one tour.
func (r *TourRepo) SetRatings(ctx context.Context, id uuid.UUID, avg float64, qty int) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE tours SET ratings_average=?, ratings_quantity=? WHERE id=?", avg, qty, id)
	return translate(err)
}

// DifficultyStats is one row of the tour statistics report.
type DifficultyStats struct {
	Difficulty string  `json:"_id"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// Stats groups well rated public tours by difficulty, cheapest first.
func (r *TourRepo) Stats(ctx context.Context) ([]DifficultyStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT UPPER(difficulty) AS diff, COUNT(*), COALESCE(SUM(ratings_quantity), 0),
		       AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		FROM tours
		WHERE ratings_average >= 4.5 AND secret_tour = 0
		GROUP BY diff
		ORDER BY AVG(price) ASC`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	out := []DifficultyStats{}
	for rows.Next() {
		var s DifficultyStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MonthStarts is one row of the monthly plan.
type MonthStarts struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
// Start dates are stored as RFC 3339 UTC strings, so year and month are
// read straight from the text.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]MonthStarts, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT CAST(SUBSTRING(sd.d, 6, 2) AS UNSIGNED) AS month, COUNT(*) AS num, JSON_ARRAYAGG(t.name)
		FROM tours t,
		     JSON_TABLE(t.start_dates, '$[*]' COLUMNS (d VARCHAR(40) PATH '$')) AS sd
		WHERE t.secret_tour = 0 AND LEFT(sd.d, 4) = ?
		GROUP BY month
		ORDER BY num DESC, month ASC
		LIMIT 12`, strconv.Itoa(year))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	out := []MonthStarts{}
	for rows.Next() {
		var (
			m     MonthStarts
			names []byte
		)
		if err := rows.Scan(&m.Month, &m.NumTourStarts, &names); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(names, &m.Tours); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
