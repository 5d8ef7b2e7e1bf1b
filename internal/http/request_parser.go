// Package http provides the JSON API server and its handlers.
//
// This file holds helpers for reading request bodies, query parameters and
// the caller's identity.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"udhar/internal/core"
)

const (
	maxBodyBytes = 64 << 10

	// HeaderAccountID carries the caller's account id.
	HeaderAccountID = "X-Account-ID"
)

// errBadRequest marks malformed input that is not a domain validation error.
var errBadRequest = errors.New("bad request")

// MonthParams holds the year/month of a statement request.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams reads year and month from the query, defaulting each to
// the current one in loc. Non-numeric values are an error; range checks are
// left to the caller.
func ParseMonthParams(query url.Values, now time.Time, loc *time.Location) (MonthParams, error) {
	if loc != nil {
		now = now.In(loc)
	}
	params := MonthParams{Year: now.Year(), Month: now.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("year %q: %w", v, errBadRequest)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("month %q: %w", v, errBadRequest)
		}
		params.Month = time.Month(m)
	}
	return params, nil
}

// ParseLimit reads a non-negative "limit" query parameter; absent means 0.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit %q: %w", v, errBadRequest)
	}
	return n, nil
}

// SearchTerm returns the sanitized "q" query parameter.
func SearchTerm(query url.Values) string {
	return sanitizeInput(query.Get("q"))
}

// DecodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected. Domain validation errors raised while
// decoding (e.g. a malformed amount) are returned unchanged.
func DecodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("content type %q: %w", ct, errBadRequest)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		switch {
		case core.IsValidation(err):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("empty body: %w", errBadRequest)
		default:
			return fmt.Errorf("%s: %w", err.Error(), errBadRequest)
		}
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON object: %w", errBadRequest)
	}
	return nil
}

func accountIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderAccountID))
}
