package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/weathermate/server/internal/service"
)

// WeatherHandler handles HTTP requests for weather endpoints.
type WeatherHandler struct {
	weather *service.WeatherService
	history *service.HistoryService
	logger  *slog.Logger
}

// NewWeatherHandler creates a new weather HTTP handler.
func NewWeatherHandler(weather *service.WeatherService, history *service.HistoryService, logger *slog.Logger) *WeatherHandler {
	return &WeatherHandler{
		weather: weather,
		history: history,
		logger:  logger,
	}
}

// PublicDefault handles GET /api/weather/public/default: current conditions
// for the fallback city, no authentication required.
func (h *WeatherHandler) PublicDefault(w http.ResponseWriter, r *http.Request) {
	result, err := h.weather.PublicDefault(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CityForecast handles GET /api/weather/city?q=<query>: full forecast for
// the best geocoding match, recording today's snapshot for the caller.
func (h *WeatherHandler) CityForecast(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	result, err := h.weather.CityForecast(r.Context(), p.UserID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RegionToday handles GET /api/weather/region?q=<query>: today's conditions
// for the most populous cities around the best geocoding match.
func (h *WeatherHandler) RegionToday(w http.ResponseWriter, r *http.Request) {
	result, err := h.weather.RegionToday(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CountryToday handles GET /api/weather/country?q=<query>: today's conditions
// for the most populous cities of the match's country.
func (h *WeatherHandler) CountryToday(w http.ResponseWriter, r *http.Request) {
	result, err := h.weather.CountryToday(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// MonthlyHistory handles GET /api/history/monthly?q=<query>&months=<1..4>
func (h *WeatherHandler) MonthlyHistory(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			months = -1 // out of range, rejected by the service
		} else {
			months = parsed
		}
	}

	result, err := h.history.Monthly(r.Context(), p.UserID, r.URL.Query().Get("q"), months)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
