package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/service"
)

// TourReports runs the aggregate tour queries.
type TourReports interface {
	Stats(ctx context.Context) ([]repository.DifficultyStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]repository.MonthStarts, error)
}

// TourHandler serves /tours.
type TourHandler struct {
	Tours   *service.Factory[model.Tour]
	Reports TourReports
}

func NewTourHandler(tours *service.Factory[model.Tour], reports TourReports) *TourHandler {
	return &TourHandler{Tours: tours, Reports: reports}
}

func (h *TourHandler) GetAllTours() echo.HandlerFunc {
	return GetAll(h.Tours, ListConfig{Key: "tours"})
}

// TopCheap lists the five best rated tours, cheapest first among equals.
func (h *TourHandler) TopCheap() echo.HandlerFunc {
	return GetAll(h.Tours, ListConfig{Key: "tours", Params: topCheapParams})
}

func topCheapParams(c echo.Context) url.Values {
	q := url.Values{}
	for k, v := range c.QueryParams() {
		q[k] = append([]string(nil), v...)
	}
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return q
}

func (h *TourHandler) GetTour() echo.HandlerFunc    { return GetOne(h.Tours, "tour") }
func (h *TourHandler) CreateTour() echo.HandlerFunc { return CreateOne(h.Tours, "tour", nil) }
func (h *TourHandler) UpdateTour() echo.HandlerFunc { return UpdateOne(h.Tours, "tour") }
func (h *TourHandler) DeleteTour() echo.HandlerFunc { return DeleteOne(h.Tours) }

// TourStats reports per-difficulty figures over well rated tours.
func (h *TourHandler) TourStats(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	stats, err := h.Reports.Stats(ctx)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{"stats": stats})
}

// MonthlyPlan reports tour starts per month of the requested year.
func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 || year > 9999 {
		return apperror.NewBadRequest("Invalid year: " + c.Param("year"))
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	plan, err := h.Reports.MonthlyPlan(ctx, year)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{"plan": plan})
}
