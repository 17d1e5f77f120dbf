// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination turns the "page" and "limit" query parameters of the
// account listing into a bounded window, and describes that window back to
// the client.
//
// Malformed values are rejected with a [ParamError] rather than silently
// replaced, so an admin tool paging through accounts never skips or repeats
// a page because of a typo.
package pagination

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// Window bounds for account listings.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Params is a validated 1-indexed page window.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the number of rows before the window.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// ParamError names the query parameter that failed and why.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("pagination: %s %s", e.Param, e.Reason)
}

// Parse reads "page" and "limit" from query. Absent values take page 1 and
// [DefaultLimit]. Non-numeric or non-positive values, a limit above [MaxLimit]
// and a page whose offset would overflow are rejected.
func Parse(query url.Values) (Params, error) {
	page, err := positive(query, "page", 1)
	if err != nil {
		return Params{}, err
	}

	limit, err := positive(query, "limit", DefaultLimit)
	if err != nil {
		return Params{}, err
	}
	if limit > MaxLimit {
		return Params{}, &ParamError{Param: "limit", Reason: fmt.Sprintf("must not exceed %d", MaxLimit)}
	}

	if page-1 > math.MaxInt32/limit {
		return Params{}, &ParamError{Param: "page", Reason: "is out of range"}
	}

	return Params{Page: page, Limit: limit}, nil
}

func positive(query url.Values, param string, fallback int) (int, error) {
	raw := query.Get(param)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &ParamError{Param: param, Reason: "must be a positive integer"}
	}
	return n, nil
}

// Meta describes a served window in list responses.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewMeta describes params over a result set of total rows.
func NewMeta(params Params, total int) Meta {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = (total + params.Limit - 1) / params.Limit
	}

	return Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}
