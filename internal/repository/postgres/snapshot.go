package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/weathermate/server/internal/domain"
)

// SnapshotRepository implements repository.SnapshotRepository using PostgreSQL.
type SnapshotRepository struct {
	db DB
}

// NewSnapshotRepository creates a new PostgreSQL-backed snapshot repository.
func NewSnapshotRepository(db DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert inserts a daily snapshot. The first write for a (user, location,
// date) wins; later writes for the same day are dropped by ON CONFLICT.
func (r *SnapshotRepository) Upsert(ctx context.Context, s *domain.WeatherSnapshot) error {
	query := `
		INSERT INTO weather_snapshots (id, user_id, latitude, longitude, city, country_code, admin1,
			date, temp_max_c, temp_min_c, precip_mm, wind_max_ms, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, latitude, longitude, date) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.Latitude,
		s.Longitude,
		s.City,
		s.CountryCode,
		s.Admin1,
		s.Date,
		s.Summary.TempMaxC,
		s.Summary.TempMinC,
		s.Summary.PrecipMM,
		s.Summary.WindMaxMS,
		s.Source,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	return nil
}

// ListRange returns the user's snapshots for the location with dates in
// [from, to], ordered by date.
func (r *SnapshotRepository) ListRange(ctx context.Context, userID string, lat, lon float64, from, to time.Time) ([]domain.WeatherSnapshot, error) {
	query := `
		SELECT id, user_id, latitude, longitude, city, country_code, admin1,
			date, temp_max_c, temp_min_c, precip_mm, wind_max_ms, source, created_at
		FROM weather_snapshots
		WHERE user_id = $1 AND latitude = $2 AND longitude = $3 AND date >= $4 AND date <= $5
		ORDER BY date ASC`

	rows, err := r.db.Query(ctx, query, userID, lat, lon, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.WeatherSnapshot
	for rows.Next() {
		var s domain.WeatherSnapshot
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Latitude,
			&s.Longitude,
			&s.City,
			&s.CountryCode,
			&s.Admin1,
			&s.Date,
			&s.Summary.TempMaxC,
			&s.Summary.TempMinC,
			&s.Summary.PrecipMM,
			&s.Summary.WindMaxMS,
			&s.Source,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	if snapshots == nil {
		snapshots = []domain.WeatherSnapshot{}
	}

	return snapshots, nil
}
