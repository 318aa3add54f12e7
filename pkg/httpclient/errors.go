package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// UpstreamErrorResponse mirrors the error body returned by Open-Meteo style
// APIs: {"error": true, "reason": "..."}. It is used to surface the upstream
// reason instead of an opaque status code.
type UpstreamErrorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an error carrying the upstream reason when the body matches the
// standard error format, or the raw body otherwise.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	// Try to parse structured error response.
	var upstream UpstreamErrorResponse
	if json.Unmarshal(bodyBytes, &upstream) == nil && upstream.Error && upstream.Reason != "" {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, upstream.Reason)
	}

	// Fallback: unstructured error body.
	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
// Client errors mean the request itself was bad and retrying is pointless.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
