package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainDoer struct{}

func (plainDoer) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(plainDoer{})
	c.GeoBaseURL = srv.URL + "/v1/search"
	c.ForecastBaseURL = srv.URL + "/v1/forecast"
	return c
}

func TestClient_Geocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Lisbon", r.URL.Query().Get("name"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"name":"Lisbon","latitude":38.7167,"longitude":-9.1333,"country":"Portugal","country_code":"PT","admin1":"Lisbon"},
			{"name":"Lisbon","latitude":44.03,"longitude":-70.1,"country":"United States","country_code":"US","admin1":"Maine"}
		]}`))
	})

	results, err := c.Geocode(context.Background(), "Lisbon")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PT", results[0].CountryCode)
	assert.InDelta(t, 38.7167, results[0].Latitude, 0.0001)
}

func TestClient_Search_CustomCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("count"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"name":"Porto","latitude":41.1496,"longitude":-8.611,"country":"Portugal","country_code":"PT","population":237591,"feature_code":"PPLA"}
		]}`))
	})

	results, err := c.Search(context.Background(), "Porto", 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(237591), results[0].Population)
	assert.Equal(t, "PPLA", results[0].FeatureCode)
}

func TestClient_Geocode_NoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
	})

	results, err := c.Geocode(context.Background(), "Nowheresville")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_Forecast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Contains(t, q.Get("daily"), "temperature_2m_max")
		assert.Contains(t, q.Get("hourly"), "cloud_cover")
		assert.Contains(t, q.Get("current"), "apparent_temperature")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"timezone":"America/New_York",
			"timezone_abbreviation":"EDT",
			"current":{"temperature_2m":21.5},
			"daily":{
				"time":["2026-08-30","2026-08-31"],
				"temperature_2m_max":[24.1,null],
				"temperature_2m_min":[15.0,14.2],
				"precipitation_sum":[0.0,1.2],
				"wind_speed_10m_max":[6.3,8.8]
			}
		}`))
	})

	fc, err := c.Forecast(context.Background(), 40.7128, -74.006)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", fc.Timezone)
	require.NotNil(t, fc.Daily)
	require.Len(t, fc.Daily.Time, 2)
	require.NotNil(t, fc.Daily.TempMax[0])
	assert.InDelta(t, 24.1, *fc.Daily.TempMax[0], 0.001)
	assert.Nil(t, fc.Daily.TempMax[1])
	assert.NotEmpty(t, fc.Current)
}

func TestClient_Current(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("current"))
		assert.Empty(t, q.Get("daily"))
		assert.Empty(t, q.Get("hourly"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timezone":"Europe/Lisbon","current":{"temperature_2m":28.0}}`))
	})

	fc, err := c.Current(context.Background(), 38.7167, -9.1333)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Lisbon", fc.Timezone)
	assert.Nil(t, fc.Daily)
}

func TestClient_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Forecast(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
