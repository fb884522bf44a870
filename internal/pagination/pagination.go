// Package pagination implements the limit/offset/sort contract shared by
// every list endpoint: defaults limit=10 page=1, dir ASC unless exactly
// "DESC", offset=(page-1)*limit with page 0 rejected, and a response
// envelope {total, page, limit, totalPages, dir, sortBy, results}.
package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/httperr"
)

const (
	defaultLimit = 10
	defaultPage  = 1
)

// Params holds the shaped query parameters of a list request.
type Params struct {
	Limit  int
	Page   int
	SortBy string
	Dir    string
}

// FromRequest parses limit, page, sortBy and dir from the query string.
// defaultSort names the field used when sortBy is absent (commonly
// "updatedDate" or "createdDate").  A page of 0 is kept as-is so Offset
// can reject it; it is never silently coerced to 1.
func FromRequest(c echo.Context, defaultSort string) Params {
	p := Params{Limit: defaultLimit, Page: defaultPage, SortBy: defaultSort, Dir: "ASC"}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Page = n
		}
	}
	if v := c.QueryParam("sortBy"); v != "" {
		p.SortBy = v
	}
	if c.QueryParam("dir") == "DESC" {
		p.Dir = "DESC"
	}
	return p
}

// Offset returns (page-1)*limit.  Page must be >= 1; 0 is an explicit
// BadRequest, not a silent coercion.
func (p Params) Offset() (int, error) {
	if p.Page == 0 {
		return 0, httperr.BadRequest("page can't be 0")
	}
	return (p.Page - 1) * p.Limit, nil
}

// OrderClause maps the requested sortBy through a whitelist of exposed
// field -> column names and returns a SQL "column DIR" fragment.  Unknown
// sort fields fall back to the given column so untrusted input never
// reaches the query text.
func (p Params) OrderClause(allowed map[string]string, fallback string) string {
	col, ok := allowed[p.SortBy]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if p.Dir == "DESC" {
		dir = "DESC"
	}
	return col + " " + dir
}

// Page is the envelope returned by every list operation.
type Page struct {
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
	Dir        string      `json:"dir"`
	SortBy     string      `json:"sortBy"`
	Results    interface{} `json:"results"`
}

// NewPage assembles the envelope after the underlying query has run.
// totalPages = ceil(total / limit).
func NewPage(p Params, total int64, results interface{}) Page {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Page{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: pages,
		Dir:        p.Dir,
		SortBy:     p.SortBy,
		Results:    results,
	}
}
