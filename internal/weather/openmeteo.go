// Package weather implements the Open-Meteo upstream client.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/weathermate/server/pkg/httpclient"
)

// Default upstream endpoints. Overridable for tests.
const (
	DefaultGeoBaseURL      = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastBaseURL = "https://api.open-meteo.com/v1/forecast"
)

// Fields requested from the forecast endpoint.
var (
	currentFields = []string{
		"temperature_2m", "apparent_temperature", "relative_humidity_2m",
		"precipitation", "pressure_msl", "visibility",
		"wind_speed_10m", "wind_gusts_10m", "wind_direction_10m",
	}
	hourlyFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature",
		"precipitation", "rain", "snowfall", "cloud_cover", "pressure_msl",
		"visibility", "wind_speed_10m", "wind_gusts_10m", "wind_direction_10m",
	}
	dailyFields = []string{
		"temperature_2m_max", "temperature_2m_min", "precipitation_sum",
		"rain_sum", "snowfall_sum", "wind_speed_10m_max", "wind_gusts_10m_max",
	}
)

// Doer is the HTTP client surface the weather client needs. The production
// wiring passes the circuit-breaker client.
type Doer interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// GeoResult is one geocoding match.
type GeoResult struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Admin1      string  `json:"admin1,omitempty"`
	Population  int64   `json:"population,omitempty"`
	FeatureCode string  `json:"feature_code,omitempty"`
}

// Daily is the daily aggregate block of a forecast. Slices are parallel to
// Time; entries can be null when the upstream has no data for a day.
type Daily struct {
	Time      []string   `json:"time"`
	TempMax   []*float64 `json:"temperature_2m_max"`
	TempMin   []*float64 `json:"temperature_2m_min"`
	PrecipSum []*float64 `json:"precipitation_sum"`
	RainSum   []*float64 `json:"rain_sum,omitempty"`
	SnowSum   []*float64 `json:"snowfall_sum,omitempty"`
	WindMax   []*float64 `json:"wind_speed_10m_max"`
	GustsMax  []*float64 `json:"wind_gusts_10m_max,omitempty"`
}

// Forecast is the upstream forecast payload. Current and hourly blocks pass
// through untouched; daily is decoded so the snapshot writer can read it.
type Forecast struct {
	Timezone             string          `json:"timezone,omitempty"`
	TimezoneAbbreviation string          `json:"timezone_abbreviation,omitempty"`
	Current              json.RawMessage `json:"current,omitempty"`
	CurrentUnits         json.RawMessage `json:"current_units,omitempty"`
	Hourly               json.RawMessage `json:"hourly,omitempty"`
	HourlyUnits          json.RawMessage `json:"hourly_units,omitempty"`
	Daily                *Daily          `json:"daily,omitempty"`
	DailyUnits           json.RawMessage `json:"daily_units,omitempty"`
}

// Client talks to the Open-Meteo geocoding and forecast APIs.
type Client struct {
	GeoBaseURL      string
	ForecastBaseURL string
	http            Doer
}

// NewClient creates an Open-Meteo client over the given HTTP transport.
func NewClient(http Doer) *Client {
	return &Client{
		GeoBaseURL:      DefaultGeoBaseURL,
		ForecastBaseURL: DefaultForecastBaseURL,
		http:            http,
	}
}

// Geocode resolves a free-text city query to candidate locations.
func (c *Client) Geocode(ctx context.Context, query string) ([]GeoResult, error) {
	return c.Search(ctx, query, 5)
}

// Search is Geocode with a caller-chosen result count. The upstream caps
// count at 100.
func (c *Client) Search(ctx context.Context, query string, count int) ([]GeoResult, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("language", "en")
	params.Set("format", "json")

	var payload struct {
		Results []GeoResult `json:"results"`
	}
	if err := c.getJSON(ctx, c.GeoBaseURL+"?"+params.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	return payload.Results, nil
}

// Forecast fetches current, hourly, and daily data for the coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	params := c.baseParams(lat, lon)
	params.Set("current", strings.Join(currentFields, ","))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("daily", strings.Join(dailyFields, ","))

	var fc Forecast
	if err := c.getJSON(ctx, c.ForecastBaseURL+"?"+params.Encode(), &fc); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	return &fc, nil
}

// Current fetches only the current-conditions block for the coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Forecast, error) {
	params := c.baseParams(lat, lon)
	params.Set("current", strings.Join(currentFields, ","))

	var fc Forecast
	if err := c.getJSON(ctx, c.ForecastBaseURL+"?"+params.Encode(), &fc); err != nil {
		return nil, fmt.Errorf("current conditions: %w", err)
	}

	return &fc, nil
}

func (c *Client) baseParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", "auto")
	params.Set("wind_speed_unit", "ms")
	return params
}

func (c *Client) getJSON(ctx context.Context, rawURL string, target any) error {
	resp, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "open-meteo")
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
