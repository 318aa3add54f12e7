package domain

import (
	"time"
)

// SnapshotSummary is the daily aggregate kept for monthly history charts.
type SnapshotSummary struct {
	TempMaxC  *float64 `json:"temp_max_c"`
	TempMinC  *float64 `json:"temp_min_c"`
	PrecipMM  *float64 `json:"precip_mm"`
	WindMaxMS *float64 `json:"wind_max_ms"`
}

// WeatherSnapshot stores at most one daily summary per user and location.
// Uniqueness is enforced on (user_id, latitude, longitude, date).
type WeatherSnapshot struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	City        string          `json:"city"`
	CountryCode string          `json:"country_code,omitempty"`
	Admin1      string          `json:"admin1,omitempty"`
	Date        time.Time       `json:"date"`
	Summary     SnapshotSummary `json:"summary"`
	Source      string          `json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
}
