// Package handler serves the agent's HTTP control surface.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// writeJSON marshals v with the given status, falling back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream), domain.IsTransient(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeParams reads optional scan parameters from the body. Fields left out
// keep the values of defaults; an empty body returns defaults unchanged.
func decodeParams(r *http.Request, defaults domain.ScanParams) (domain.ScanParams, error) {
	p := defaults
	if r.Body == nil {
		return p, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("%w: %w", domain.ErrInvalidParams, err)
	}
	return p, p.Validate()
}

// parseLimit reads ?limit=, defaulting to def and capped at 500.
func parseLimit(r *http.Request, def int) int {
	limit := def
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	return min(limit, 500)
}

// parseListOpts reads ?limit= and ?offset=.
func parseListOpts(r *http.Request) domain.ListOpts {
	opts := domain.ListOpts{Limit: parseLimit(r, 50)}
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n >= 0 {
		opts.Offset = n
	}
	return opts
}
