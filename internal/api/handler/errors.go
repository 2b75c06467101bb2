package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/bioverify/internal/api/response"
	"github.com/kiranshivaraju/bioverify/internal/bioverify"
)

// writeUpstreamError maps an API client error onto the response envelope.
// Client errors from the upstream API (404, 400, 409, ...) pass through with
// their status and message; everything else becomes a gateway error.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var apiErr *bioverify.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		response.Error(w, http.StatusNotFound, "NOT_FOUND", apiErr.Message, nil)
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		response.Error(w, apiErr.StatusCode, "UPSTREAM_REJECTED", apiErr.Message, nil)
	case errors.Is(err, bioverify.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
			"The analysis API did not respond in time", nil)
	case errors.Is(err, bioverify.ErrUnreachable):
		response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"The analysis API is not reachable", nil)
	case errors.Is(err, bioverify.ErrServer):
		slog.Warn("upstream server error", "op", op, "error", err)
		response.Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), nil)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// client went away; nothing useful to write
	default:
		slog.Error("request failed", "op", op, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
