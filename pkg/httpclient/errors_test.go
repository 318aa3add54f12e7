package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeResponse creates an *http.Response with the given status code and body string.
func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_StructuredReason(t *testing.T) {
	resp := makeResponse(http.StatusBadRequest, `{"error":true,"reason":"Latitude must be in range of -90 to 90"}`)
	err := ParseResponseError(resp, "open-meteo")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "open-meteo")
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Latitude must be in range of -90 to 90")
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	resp := makeResponse(http.StatusBadGateway, "Bad Gateway: upstream connection refused")
	err := ParseResponseError(resp, "open-meteo")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "open-meteo")
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "Bad Gateway: upstream connection refused")
}

func TestParseResponseError_EmptyBody(t *testing.T) {
	resp := makeResponse(http.StatusInternalServerError, "")
	err := ParseResponseError(resp, "open-meteo")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "open-meteo")
	assert.Contains(t, err.Error(), "500")
}

func TestParseResponseError_HTMLBody(t *testing.T) {
	resp := makeResponse(http.StatusBadGateway, "<html><body><h1>502 Bad Gateway</h1></body></html>")
	err := ParseResponseError(resp, "nginx")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "nginx")
	assert.Contains(t, err.Error(), "502")
}

func TestParseResponseError_ErrorFalseFallsThrough(t *testing.T) {
	// {"error":false} is not an upstream error envelope; use the raw body.
	resp := makeResponse(http.StatusBadRequest, `{"error":false,"reason":"ignored"}`)
	err := ParseResponseError(resp, "open-meteo")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "open-meteo")
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), `"error":false`)
}

func TestParseResponseError_MissingReasonFallsThrough(t *testing.T) {
	resp := makeResponse(http.StatusBadRequest, `{"error":true}`)
	err := ParseResponseError(resp, "open-meteo")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), `{"error":true}`)
}

// --- IsClientError tests ---

func TestIsClientError_4xx(t *testing.T) {
	clientStatuses := []int{400, 401, 403, 404, 409, 410, 422, 429, 499}
	for _, status := range clientStatuses {
		assert.True(t, IsClientError(status), "status %d should be a client error", status)
	}
}

func TestIsClientError_5xx(t *testing.T) {
	serverStatuses := []int{500, 501, 502, 503, 504}
	for _, status := range serverStatuses {
		assert.False(t, IsClientError(status), "status %d should NOT be a client error", status)
	}
}

func TestIsClientError_2xx(t *testing.T) {
	successStatuses := []int{200, 201, 204, 301, 302}
	for _, status := range successStatuses {
		assert.False(t, IsClientError(status), "status %d should NOT be a client error", status)
	}
}

func TestIsClientError_Boundary(t *testing.T) {
	assert.False(t, IsClientError(399), "399 should not be a client error")
	assert.True(t, IsClientError(400), "400 should be a client error")
	assert.True(t, IsClientError(499), "499 should be a client error")
	assert.False(t, IsClientError(500), "500 should not be a client error")
}
