// Command seed loads the sample tours, users and reviews from dev-data, or
// wipes them.
//
//	seed --import [--dir dev-data]
//	seed --delete
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/database"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/service"
	"github.com/iliyamo/natours-api/internal/utils"
)

// Records in dev-data carry their ids so reviews and guides can refer to
// them; the API never accepts ids in bodies.
type seedUser struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	Photo    string    `json:"photo"`
	Password string    `json:"password"`
}

type seedTour struct {
	ID uuid.UUID `json:"id"`
	model.Tour
}

type seedReview struct {
	ID uuid.UUID `json:"id"`
	model.Review
}

func main() {
	var (
		doImport = pflag.Bool("import", false, "import dev-data into the database")
		doDelete = pflag.Bool("delete", false, "delete all tours, users and reviews")
		dir      = pflag.String("dir", "dev-data", "directory holding tours.json, users.json and reviews.json")
	)
	pflag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.Env)

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: seed --import [--dir DIR] | seed --delete")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	db, err := database.Open(cfg.DSN())
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(cfg.DSN(), logger); err != nil {
		logger.Error("migrate database", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s := newSeeder(db, cfg, logger)
	if *doDelete {
		err = s.deleteAll(ctx)
	} else {
		err = s.importAll(ctx, *dir)
	}
	if err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

type seeder struct {
	users   *repository.UserRepo
	tours   *repository.TourRepo
	reviews *repository.ReviewRepo
	creds   *utils.Credentials
	ratings *service.RatingAggregator
	logger  *slog.Logger
}

func newSeeder(db *sql.DB, cfg config.Config, logger *slog.Logger) *seeder {
	s := &seeder{
		users:   repository.NewUserRepo(db),
		tours:   repository.NewTourRepo(db),
		reviews: repository.NewReviewRepo(db),
		creds:   utils.NewCredentials(cfg.BcryptCost, cfg.ResetTokenTTL),
		logger:  logger,
	}
	s.ratings = service.NewRatingAggregator(s.reviews, s.tours, logger)
	return s
}

// deleteAll removes reviews first so the foreign keys never dangle.
func (s *seeder) deleteAll(ctx context.Context) error {
	for _, t := range []interface {
		Name() string
		DeleteAll(context.Context) (int64, error)
	}{s.reviews.Table, s.tours.Table, s.users.Table} {
		n, err := t.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w", t.Name(), err)
		}
		s.logger.Info("deleted", "table", t.Name(), "rows", n)
	}
	return nil
}

func (s *seeder) importAll(ctx context.Context, dir string) error {
	var (
		users   []seedUser
		tours   []seedTour
		reviews []seedReview
	)
	if err := readJSON(filepath.Join(dir, "users.json"), &users); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(dir, "tours.json"), &tours); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(dir, "reviews.json"), &reviews); err != nil {
		return err
	}

	for _, su := range users {
		u := &model.User{ID: su.ID, Name: su.Name, Email: su.Email, Role: su.Role, Photo: su.Photo}
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		if err := s.creds.SetPassword(u, su.Password); err != nil {
			return fmt.Errorf("hash password of %s: %w", su.Email, err)
		}
		u.PasswordChangedAt = nil
		if err := model.UserSchema.Validate(u); err != nil {
			return fmt.Errorf("user %s: %w", su.Email, err)
		}
		if err := s.users.Insert(ctx, u); err != nil {
			return fmt.Errorf("insert user %s: %w", su.Email, err)
		}
	}
	s.logger.Info("imported", "table", "users", "rows", len(users))

	for _, st := range tours {
		t := st.Tour
		t.ID = st.ID
		t.RatingsAverage, t.RatingsQuantity = model.DefaultRatingsAverage, model.DefaultRatingsQuantity
		t.Normalize()
		if err := model.TourSchema.Validate(&t); err != nil {
			return fmt.Errorf("tour %q: %w", t.Name, err)
		}
		if err := s.tours.Insert(ctx, &t); err != nil {
			return fmt.Errorf("insert tour %q: %w", t.Name, err)
		}
	}
	s.logger.Info("imported", "table", "tours", "rows", len(tours))

	touched := map[uuid.UUID]bool{}
	for _, sr := range reviews {
		r := sr.Review
		r.ID = sr.ID
		r.Normalize()
		if err := model.ReviewSchema.Validate(&r); err != nil {
			return fmt.Errorf("review %s: %w", sr.ID, err)
		}
		if err := s.reviews.Insert(ctx, &r); err != nil {
			return fmt.Errorf("insert review %s: %w", sr.ID, err)
		}
		touched[r.Tour] = true
	}
	s.logger.Info("imported", "table", "reviews", "rows", len(reviews))

	for _, st := range tours {
		if !touched[st.ID] {
			continue
		}
		if err := s.ratings.Recalculate(ctx, st.ID); err != nil {
			return fmt.Errorf("recalculate ratings of %s: %w", st.ID, err)
		}
	}
	return nil
}

func readJSON(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s not found; pass --dir", path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
