package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/weather"
	apperrors "github.com/weathermate/server/pkg/errors"
)

// --- Mock Snapshot Repository ---

type mockSnapshotRepository struct {
	mock.Mock
}

func (m *mockSnapshotRepository) Upsert(ctx context.Context, snapshot *domain.WeatherSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *mockSnapshotRepository) ListRange(ctx context.Context, userID string, lat, lon float64, from, to time.Time) ([]domain.WeatherSnapshot, error) {
	args := m.Called(ctx, userID, lat, lon, from, to)
	return args.Get(0).([]domain.WeatherSnapshot), args.Error(1)
}

// --- Test Helpers ---

type plainDoer struct {
	client *http.Client
}

func (d *plainDoer) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return d.client.Do(req)
}

const berlinGeoJSON = `{"results":[
	{"name":"Berlin","latitude":52.52,"longitude":13.405,"country":"Germany","country_code":"DE","admin1":"Berlin"},
	{"name":"Berlin","latitude":44.46,"longitude":-71.18,"country":"United States","country_code":"US","admin1":"New Hampshire"}
]}`

const berlinForecastJSON = `{
	"timezone":"Europe/Berlin",
	"timezone_abbreviation":"CEST",
	"current":{"temperature_2m":21.4,"weather_code":2},
	"current_units":{"temperature_2m":"°C"},
	"hourly":{"time":["2026-08-30T00:00"],"temperature_2m":[18.2]},
	"daily":{
		"time":["2026-08-30","2026-08-31"],
		"temperature_2m_max":[24.5,22.0],
		"temperature_2m_min":[14.1,13.0],
		"precipitation_sum":[0.2,1.4],
		"wind_speed_10m_max":[5.5,7.1]
	}
}`

const currentOnlyJSON = `{
	"timezone":"America/New_York",
	"timezone_abbreviation":"EDT",
	"current":{"temperature_2m":27.3,"weather_code":1}
}`

// newFakeUpstream serves canned geocoding and forecast responses and counts
// forecast hits so cache behavior is observable.
func newFakeUpstream(t *testing.T, geoBody, forecastBody string) (*weather.Client, *int) {
	t.Helper()

	hits := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/search":
			fmt.Fprint(w, geoBody)
		case "/v1/forecast":
			*hits++
			fmt.Fprint(w, forecastBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := weather.NewClient(&plainDoer{client: srv.Client()})
	client.GeoBaseURL = srv.URL + "/v1/search"
	client.ForecastBaseURL = srv.URL + "/v1/forecast"
	return client, hits
}

func newTestWeatherService(t *testing.T, geoBody, forecastBody string, snapshots *mockSnapshotRepository) *WeatherService {
	t.Helper()
	client, _ := newFakeUpstream(t, geoBody, forecastBody)
	return NewWeatherService(client, snapshots, nil, newTestLogger())
}

// --- ResolveCity Tests ---

func TestResolveCity_FirstResultWins(t *testing.T) {
	svc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, new(mockSnapshotRepository))

	loc, err := svc.ResolveCity(context.Background(), " Berlin ")

	require.NoError(t, err)
	assert.Equal(t, "Berlin", loc.Name)
	assert.Equal(t, "DE", loc.CountryCode)
	assert.InDelta(t, 52.52, loc.Latitude, 0.001)
}

func TestResolveCity_NotFound(t *testing.T) {
	svc := newTestWeatherService(t, `{"results":[]}`, berlinForecastJSON, new(mockSnapshotRepository))

	loc, err := svc.ResolveCity(context.Background(), "Atlantis")

	assert.Nil(t, loc)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CITY_NOT_FOUND", appErr.Code)
}

func TestResolveCity_EmptyQuery(t *testing.T) {
	svc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, new(mockSnapshotRepository))

	_, err := svc.ResolveCity(context.Background(), "   ")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// --- Forecast Tests ---

func TestCityForecast_StoresDailySnapshot(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	svc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)
	ctx := context.Background()

	var stored *domain.WeatherSnapshot
	snapshots.On("Upsert", ctx, mock.AnythingOfType("*domain.WeatherSnapshot")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.WeatherSnapshot)
		}).
		Return(nil)

	result, err := svc.CityForecast(ctx, "u1", "Berlin")

	require.NoError(t, err)
	assert.Equal(t, "Berlin", result.Location.Name)
	assert.Equal(t, "open-meteo", result.Source)
	assert.Equal(t, "Europe/Berlin", result.Timezone)
	require.NotNil(t, result.Daily)
	assert.Len(t, result.Daily.Time, 2)

	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "Berlin", stored.City)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), stored.Date)
	require.NotNil(t, stored.Summary.TempMaxC)
	assert.InDelta(t, 24.5, *stored.Summary.TempMaxC, 0.001)
	require.NotNil(t, stored.Summary.WindMaxMS)
	assert.InDelta(t, 5.5, *stored.Summary.WindMaxMS, 0.001)

	snapshots.AssertExpectations(t)
}

func TestCityForecast_SnapshotFailureDoesNotFailRequest(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	svc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)
	ctx := context.Background()

	snapshots.On("Upsert", ctx, mock.AnythingOfType("*domain.WeatherSnapshot")).
		Return(assert.AnError)

	result, err := svc.CityForecast(ctx, "u1", "Berlin")

	require.NoError(t, err)
	assert.NotNil(t, result.Daily)
}

func TestCityForecast_AnonymousSkipsSnapshot(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	svc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)

	_, err := svc.CityForecast(context.Background(), "", "Berlin")

	require.NoError(t, err)
	snapshots.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestPublicDefault(t *testing.T) {
	svc := newTestWeatherService(t, berlinGeoJSON, currentOnlyJSON, new(mockSnapshotRepository))

	result, err := svc.PublicDefault(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "New York", result.Location.Name)
	assert.InDelta(t, 40.7128, result.Location.Latitude, 0.001)
	assert.Equal(t, "open-meteo", result.Source)
	assert.NotEmpty(t, result.Current)
	assert.False(t, result.FetchedAt.IsZero())
}

// --- History Tests ---

func TestHistoryMonthly_ReturnsWindow(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	weatherSvc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)
	svc := NewHistoryService(weatherSvc, snapshots, newTestLogger())
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	snapshots.On("ListRange", ctx, "u1", 52.52, 13.405, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]domain.WeatherSnapshot{{UserID: "u1", City: "Berlin", Date: day}}, nil)

	result, err := svc.Monthly(ctx, "u1", "Berlin", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Months)
	assert.Equal(t, "Berlin", result.Location.Name)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, day, result.Snapshots[0].Date)

	// The window is rolling: from is months back from now, not a
	// calendar-month boundary.
	call := snapshots.Calls[len(snapshots.Calls)-1]
	from := call.Arguments.Get(4).(time.Time)
	to := call.Arguments.Get(5).(time.Time)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, -2, 0), from, time.Minute)
	assert.WithinDuration(t, time.Now().UTC(), to, time.Minute)
}

func TestHistoryMonthly_DefaultsToOneMonth(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	weatherSvc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)
	svc := NewHistoryService(weatherSvc, snapshots, newTestLogger())
	ctx := context.Background()

	snapshots.On("ListRange", ctx, "u1", 52.52, 13.405, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]domain.WeatherSnapshot{}, nil)

	result, err := svc.Monthly(ctx, "u1", "Berlin", 0)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Months)
	assert.Empty(t, result.Snapshots)
}

func TestHistoryMonthly_MonthsOutOfRange(t *testing.T) {
	snapshots := new(mockSnapshotRepository)
	weatherSvc := newTestWeatherService(t, berlinGeoJSON, berlinForecastJSON, snapshots)
	svc := NewHistoryService(weatherSvc, snapshots, newTestLogger())

	for _, months := range []int{-1, 5, 12} {
		_, err := svc.Monthly(context.Background(), "u1", "Berlin", months)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "months=%d", months)
	}
	snapshots.AssertNotCalled(t, "ListRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
