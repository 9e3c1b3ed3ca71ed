// Package http serves the finboard JSON API.
//
// This file holds the request-side helpers: user resolution, query parsing and
// strict JSON body decoding.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"finboard/internal/core"
)

// UserIDHeader names the caller. Authentication happens upstream of this service.
const UserIDHeader = "X-User-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// userID returns the caller from X-User-ID, or the configured development user.
func (s *Server) userID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get(UserIDHeader)); id != "" {
		return id
	}
	return s.devUserID
}

// parseDateParam reads an optional YYYY-MM-DD query parameter. An absent value
// returns the zero date, which the services read as today.
func parseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(key, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

// parseBoolParam accepts 1, true and yes.
func parseBoolParam(query url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// requireID returns the id query parameter used by PUT and DELETE.
func requireID(r *http.Request) (string, error) {
	id := sanitizeInput(r.URL.Query().Get("id"))
	if id == "" {
		return "", core.NewValidationError("id", "is required")
	}
	return id, nil
}

// splitList splits a comma separated parameter, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := sanitizeInput(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeJSON reads one JSON object into dst. Unknown fields, trailing data and
// oversized bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return core.NewValidationError("Content-Type", "must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.NewValidationError("body", "is required")
		case errors.As(err, &maxErr):
			return core.NewValidationError("body", "is too large")
		default:
			return core.NewValidationError("body", fmt.Sprintf("is not valid JSON: %v", err))
		}
	}
	if dec.More() {
		return core.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage return,
// and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
