package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/pkg/database"
)

func newSnapshotTestFixture(t *testing.T) (*SnapshotRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewSnapshotRepository(mock)
	return repo, mock
}

func sampleSnapshot() *domain.WeatherSnapshot {
	now := time.Now().UTC().Truncate(time.Microsecond)
	tmax, tmin, precip, wind := 21.4, 12.8, 0.6, 7.2
	return &domain.WeatherSnapshot{
		ID:          "e4d5f6a7-0000-4000-8000-000000000003",
		UserID:      "c7a9e1f0-0000-4000-8000-000000000001",
		Latitude:    40.7128,
		Longitude:   -74.006,
		City:        "New York",
		CountryCode: "US",
		Admin1:      "New York",
		Date:        time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		Summary: domain.SnapshotSummary{
			TempMaxC:  &tmax,
			TempMinC:  &tmin,
			PrecipMM:  &precip,
			WindMaxMS: &wind,
		},
		Source:    "open-meteo",
		CreatedAt: now,
	}
}

func TestSnapshotRepository_Upsert_Inserts(t *testing.T) {
	repo, mock := newSnapshotTestFixture(t)
	defer mock.Close()

	s := sampleSnapshot()

	mock.ExpectExec("INSERT INTO weather_snapshots").
		WithArgs(
			s.ID, s.UserID, s.Latitude, s.Longitude, s.City, s.CountryCode, s.Admin1,
			s.Date, s.Summary.TempMaxC, s.Summary.TempMinC, s.Summary.PrecipMM, s.Summary.WindMaxMS,
			s.Source, s.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Upsert_DuplicateDayIsNoop(t *testing.T) {
	repo, mock := newSnapshotTestFixture(t)
	defer mock.Close()

	s := sampleSnapshot()

	// ON CONFLICT DO NOTHING reports zero rows; that is still success.
	mock.ExpectExec("INSERT INTO weather_snapshots").
		WithArgs(
			s.ID, s.UserID, s.Latitude, s.Longitude, s.City, s.CountryCode, s.Admin1,
			s.Date, s.Summary.TempMaxC, s.Summary.TempMinC, s.Summary.PrecipMM, s.Summary.WindMaxMS,
			s.Source, s.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := repo.Upsert(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_ListRange(t *testing.T) {
	repo, mock := newSnapshotTestFixture(t)
	defer mock.Close()

	s := sampleSnapshot()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "latitude", "longitude", "city", "country_code", "admin1",
		"date", "temp_max_c", "temp_min_c", "precip_mm", "wind_max_ms", "source", "created_at",
	}).AddRow(
		s.ID, s.UserID, s.Latitude, s.Longitude, s.City, s.CountryCode, s.Admin1,
		s.Date, s.Summary.TempMaxC, s.Summary.TempMinC, s.Summary.PrecipMM, s.Summary.WindMaxMS,
		s.Source, s.CreatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM weather_snapshots").
		WithArgs(s.UserID, s.Latitude, s.Longitude, from, to).
		WillReturnRows(rows)

	got, err := repo.ListRange(context.Background(), s.UserID, s.Latitude, s.Longitude, from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s.City, got[0].City)
	require.NotNil(t, got[0].Summary.TempMaxC)
	assert.InDelta(t, 21.4, *got[0].Summary.TempMaxC, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_ListRange_Empty(t *testing.T) {
	repo, mock := newSnapshotTestFixture(t)
	defer mock.Close()

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM weather_snapshots").
		WithArgs("user-1", 51.5, -0.12, from, to).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "latitude", "longitude", "city", "country_code", "admin1",
			"date", "temp_max_c", "temp_min_c", "precip_mm", "wind_max_ms", "source", "created_at",
		}))

	got, err := repo.ListRange(context.Background(), "user-1", 51.5, -0.12, from, to)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}
