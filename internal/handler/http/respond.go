package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/weathermate/server/pkg/errors"
	"github.com/weathermate/server/pkg/httputil"
)

const maxBodyBytes = 1 << 20 // 1MB

// decodeJSON reads and decodes a JSON request body into dest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.Validation("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	httputil.WriteJSON(w, status, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httputil.WriteError(w, r, err, logger)
}

func writeValidationError(w http.ResponseWriter, err error) {
	httputil.WriteValidationError(w, err)
}

// messageResponse is the body for endpoints that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}
