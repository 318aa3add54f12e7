package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/repository"
	"github.com/weathermate/server/internal/weather"
	apperrors "github.com/weathermate/server/pkg/errors"
)

// Open-Meteo responses change slowly; the cache keeps the dashboard off the
// upstream on every poll.
const (
	geoCacheTTL      = time.Hour
	forecastCacheTTL = 5 * time.Minute
	currentCacheTTL  = 2 * time.Minute
)

const weatherSource = "open-meteo"

// Fallback location served to anonymous visitors.
var publicDefaultLocation = Location{
	Name:      "New York",
	Latitude:  40.7128,
	Longitude: -74.006,
	Country:   "United States",
}

// Location is a resolved place, the first geocoding match for a query.
type Location struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Admin1      string  `json:"admin1,omitempty"`
}

// CurrentResult is the normalized current-conditions payload.
type CurrentResult struct {
	Location             Location        `json:"location"`
	Timezone             string          `json:"timezone,omitempty"`
	TimezoneAbbreviation string          `json:"timezone_abbreviation,omitempty"`
	Current              json.RawMessage `json:"current"`
	CurrentUnits         json.RawMessage `json:"current_units,omitempty"`
	Source               string          `json:"source"`
	FetchedAt            time.Time       `json:"fetched_at"`
}

// ForecastResult is the normalized full-forecast payload.
type ForecastResult struct {
	Location             Location        `json:"location"`
	Timezone             string          `json:"timezone,omitempty"`
	TimezoneAbbreviation string          `json:"timezone_abbreviation,omitempty"`
	Current              json.RawMessage `json:"current,omitempty"`
	CurrentUnits         json.RawMessage `json:"current_units,omitempty"`
	Hourly               json.RawMessage `json:"hourly,omitempty"`
	HourlyUnits          json.RawMessage `json:"hourly_units,omitempty"`
	Daily                *weather.Daily  `json:"daily,omitempty"`
	DailyUnits           json.RawMessage `json:"daily_units,omitempty"`
	Source               string          `json:"source"`
	FetchedAt            time.Time       `json:"fetched_at"`
}

// WeatherService resolves city queries and proxies Open-Meteo data with a
// redis read-through cache. A nil redis client disables caching.
type WeatherService struct {
	meteo     *weather.Client
	snapshots repository.SnapshotRepository
	cache     *redis.Client
	logger    *slog.Logger
}

// NewWeatherService creates a new weather service.
func NewWeatherService(meteo *weather.Client, snapshots repository.SnapshotRepository, cache *redis.Client, logger *slog.Logger) *WeatherService {
	return &WeatherService{
		meteo:     meteo,
		snapshots: snapshots,
		cache:     cache,
		logger:    logger,
	}
}

// ResolveCity geocodes a free-text query to its best match.
func (s *WeatherService) ResolveCity(ctx context.Context, query string) (*Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("query is required")
	}

	key := "geo:" + strings.ToLower(query)
	var loc Location
	if s.cacheGet(ctx, key, &loc) {
		return &loc, nil
	}

	results, err := s.meteo.Geocode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, apperrors.CityNotFound(query)
	}

	first := results[0]
	loc = Location{
		Name:        first.Name,
		Latitude:    first.Latitude,
		Longitude:   first.Longitude,
		Country:     first.Country,
		CountryCode: first.CountryCode,
		Admin1:      first.Admin1,
	}
	s.cacheSet(ctx, key, loc, geoCacheTTL)

	return &loc, nil
}

// PublicDefault returns current conditions for the fallback city shown to
// anonymous visitors.
func (s *WeatherService) PublicDefault(ctx context.Context) (*CurrentResult, error) {
	return s.currentFor(ctx, publicDefaultLocation)
}

// Current returns current conditions for a resolved location.
func (s *WeatherService) Current(ctx context.Context, loc Location) (*CurrentResult, error) {
	return s.currentFor(ctx, loc)
}

func (s *WeatherService) currentFor(ctx context.Context, loc Location) (*CurrentResult, error) {
	key := fmt.Sprintf("cur:%.4f:%.4f", loc.Latitude, loc.Longitude)
	var cached CurrentResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	fc, err := s.meteo.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("fetch current conditions: %w", err)
	}

	result := &CurrentResult{
		Location:             loc,
		Timezone:             fc.Timezone,
		TimezoneAbbreviation: fc.TimezoneAbbreviation,
		Current:              fc.Current,
		CurrentUnits:         fc.CurrentUnits,
		Source:               weatherSource,
		FetchedAt:            time.Now().UTC(),
	}
	s.cacheSet(ctx, key, result, currentCacheTTL)

	return result, nil
}

// CityForecast resolves the query, fetches the full forecast, and records
// today's daily summary as a snapshot for the user's history. Snapshot
// persistence is best-effort; a storage failure does not fail the request.
func (s *WeatherService) CityForecast(ctx context.Context, userID, query string) (*ForecastResult, error) {
	loc, err := s.ResolveCity(ctx, query)
	if err != nil {
		return nil, err
	}

	result, err := s.forecastFor(ctx, *loc)
	if err != nil {
		return nil, err
	}

	if userID != "" {
		if err := s.captureSnapshot(ctx, userID, *loc, result.Daily); err != nil {
			s.logger.WarnContext(ctx, "failed to store weather snapshot",
				slog.String("user_id", userID),
				slog.String("city", loc.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

func (s *WeatherService) forecastFor(ctx context.Context, loc Location) (*ForecastResult, error) {
	key := fmt.Sprintf("fc:%.4f:%.4f", loc.Latitude, loc.Longitude)
	var cached ForecastResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	fc, err := s.meteo.Forecast(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	result := &ForecastResult{
		Location:             loc,
		Timezone:             fc.Timezone,
		TimezoneAbbreviation: fc.TimezoneAbbreviation,
		Current:              fc.Current,
		CurrentUnits:         fc.CurrentUnits,
		Hourly:               fc.Hourly,
		HourlyUnits:          fc.HourlyUnits,
		Daily:                fc.Daily,
		DailyUnits:           fc.DailyUnits,
		Source:               weatherSource,
		FetchedAt:            time.Now().UTC(),
	}
	s.cacheSet(ctx, key, result, forecastCacheTTL)

	return result, nil
}

// captureSnapshot stores today's daily aggregate, index 0 of the daily
// arrays. The unique index makes repeat fetches within a day a no-op.
func (s *WeatherService) captureSnapshot(ctx context.Context, userID string, loc Location, daily *weather.Daily) error {
	if daily == nil || len(daily.Time) == 0 {
		return nil
	}

	date, err := time.Parse("2006-01-02", daily.Time[0])
	if err != nil {
		return fmt.Errorf("parse daily date %q: %w", daily.Time[0], err)
	}

	snapshot := &domain.WeatherSnapshot{
		ID:          uuid.New().String(),
		UserID:      userID,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		City:        loc.Name,
		CountryCode: loc.CountryCode,
		Admin1:      loc.Admin1,
		Date:        date.UTC(),
		Summary: domain.SnapshotSummary{
			TempMaxC:  dailyAt(daily.TempMax, 0),
			TempMinC:  dailyAt(daily.TempMin, 0),
			PrecipMM:  dailyAt(daily.PrecipSum, 0),
			WindMaxMS: dailyAt(daily.WindMax, 0),
		},
		Source:    weatherSource,
		CreatedAt: time.Now().UTC(),
	}

	return s.snapshots.Upsert(ctx, snapshot)
}

func dailyAt(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

// --- Cache helpers ---

func (s *WeatherService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.WarnContext(ctx, "cache entry corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func (s *WeatherService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
