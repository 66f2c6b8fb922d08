package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/query"
	"github.com/iliyamo/natours-api/internal/service"
)

// ReviewHandler serves /reviews and /tours/:tourId/reviews.
type ReviewHandler struct {
	Reviews *service.Factory[model.Review]
}

func NewReviewHandler(reviews *service.Factory[model.Review]) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

// GetAllReviews lists reviews, narrowed to one tour on the nested route.
func (h *ReviewHandler) GetAllReviews() echo.HandlerFunc {
	return GetAll(h.Reviews, ListConfig{Key: "reviews", Scope: tourScope})
}

func tourScope(c echo.Context) ([]query.Condition, error) {
	raw := c.Param("tourId")
	if raw == "" {
		return nil, nil
	}
	id, err := service.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return []query.Condition{{Field: "tour", Op: query.Eq, Value: id}}, nil
}

// CreateReview takes the tour from the nested route when the body omits it;
// the author is always the caller.
func (h *ReviewHandler) CreateReview() echo.HandlerFunc {
	return CreateOne(h.Reviews, "review", setTourUserIDs)
}

func setTourUserIDs(c echo.Context, r *model.Review) error {
	if raw := c.Param("tourId"); raw != "" && r.Tour == uuid.Nil {
		id, err := service.ParseID(raw)
		if err != nil {
			return err
		}
		r.Tour = id
	}
	u, err := caller(c)
	if err != nil {
		return err
	}
	r.User = u.ID
	return nil
}

func (h *ReviewHandler) GetReview() echo.HandlerFunc    { return GetOne(h.Reviews, "review") }
func (h *ReviewHandler) UpdateReview() echo.HandlerFunc { return UpdateOne(h.Reviews, "review") }
func (h *ReviewHandler) DeleteReview() echo.HandlerFunc { return DeleteOne(h.Reviews) }
