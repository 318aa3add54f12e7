package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/repository"
	apperrors "github.com/weathermate/server/pkg/errors"
)

const (
	minHistoryMonths     = 1
	maxHistoryMonths     = 4
	defaultHistoryMonths = 1
)

// HistoryResult is the monthly-history payload: the resolved location and
// its daily snapshots over the requested window, oldest first.
type HistoryResult struct {
	Location  Location                 `json:"location"`
	Months    int                      `json:"months"`
	Snapshots []domain.WeatherSnapshot `json:"snapshots"`
}

// HistoryService serves the per-user daily snapshot history.
type HistoryService struct {
	weather   *WeatherService
	snapshots repository.SnapshotRepository
	logger    *slog.Logger
}

// NewHistoryService creates a new history service.
func NewHistoryService(weather *WeatherService, snapshots repository.SnapshotRepository, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		weather:   weather,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Monthly returns the user's snapshots for the queried city over a rolling
// window ending now. Months outside [1, 4] are rejected; zero means the
// default of one month.
func (s *HistoryService) Monthly(ctx context.Context, userID, query string, months int) (*HistoryResult, error) {
	if months == 0 {
		months = defaultHistoryMonths
	}
	if months < minHistoryMonths || months > maxHistoryMonths {
		return nil, apperrors.Validation(fmt.Sprintf("months must be between %d and %d", minHistoryMonths, maxHistoryMonths))
	}

	loc, err := s.weather.ResolveCity(ctx, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, -months, 0)

	snapshots, err := s.snapshots.ListRange(ctx, userID, loc.Latitude, loc.Longitude, from, now)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return &HistoryResult{
		Location:  *loc,
		Months:    months,
		Snapshots: snapshots,
	}, nil
}
