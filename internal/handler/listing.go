package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/pagination"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/validate"
)

// ListingHandler serves listing and job-listing endpoints.  Job
// listings are ordinary listings in the reserved job category paired
// with a job_listings row; the pair is always written inside one
// transaction so neither half can exist alone.
type ListingHandler struct {
	Listings   *repository.ListingRepo
	Categories *repository.CategoryRepo
}

func NewListingHandler(l *repository.ListingRepo, c *repository.CategoryRepo) *ListingHandler {
	return &ListingHandler{Listings: l, Categories: c}
}

// listingSortColumns whitelists client sort keys against real columns.
var listingSortColumns = map[string]string{
	"updatedDate": "updated_date",
	"createdDate": "created_date",
	"price":       "price",
	"title":       "title",
}

type listingReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Zipcode     string   `json:"zipcode"`
	CategoryID  uint64   `json:"categoryId"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`

	// Job-only fields, consumed by CreateJob.
	MinRate   float64 `json:"minRate"`
	MaxRate   float64 `json:"maxRate"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
}

func (r listingReq) fields() map[string]string {
	return map[string]string{
		"title":       r.Title,
		"description": r.Description,
		"city":        r.City,
		"state":       r.State,
		"zipcode":     r.Zipcode,
		"status":      r.Status,
	}
}

// CreateListing handles POST /api/create-listing.  The job category is
// reserved: listings in it must go through CreateJob so the job details
// are written in the same transaction.
func (h *ListingHandler) CreateListing(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if errs := validate.Apply(validate.ListingRules, req.fields()); len(errs) > 0 {
		return httperr.Validation(errs)
	}
	if req.CategoryID == model.JobCategoryID {
		return httperr.BadRequest("job listings must be created through create-job")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if known, err := h.Categories.Exists(ctx, req.CategoryID); err != nil {
		return httperr.Store(err)
	} else if !known {
		return httperr.BadRequest("unknown categoryId")
	}

	l := model.Listing{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		City:        req.City,
		State:       req.State,
		Zipcode:     req.Zipcode,
		CategoryID:  req.CategoryID,
		CreatedUser: p.ID,
		Tags:        req.Tags,
		Status:      req.Status,
	}
	tx, err := h.Listings.DB.BeginTx(ctx, nil)
	if err != nil {
		return httperr.Store(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Listings.CreateTx(ctx, tx, &l); err != nil {
		return httperr.Store(err)
	}
	if err := tx.Commit(); err != nil {
		return httperr.Store(err)
	}
	committed = true
	return c.JSON(http.StatusCreated, l)
}

// CreateJob handles POST /api/create-job.  The listing row and its job
// details are created atomically; the category is forced to the
// reserved job category regardless of the body.
func (h *ListingHandler) CreateJob(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if errs := validate.Apply(validate.ListingRules, req.fields()); len(errs) > 0 {
		return httperr.Validation(errs)
	}
	start, end, errs := parseJobDates(req.StartDate, req.EndDate)
	if req.MinRate <= 0 || req.MaxRate < req.MinRate {
		errs = append(errs, httperr.FieldError{Field: "minRate", Message: "minRate and maxRate must form a positive range"})
	}
	if len(errs) > 0 {
		return httperr.Validation(errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l := model.Listing{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		City:        req.City,
		State:       req.State,
		Zipcode:     req.Zipcode,
		CategoryID:  model.JobCategoryID,
		CreatedUser: p.ID,
		Tags:        req.Tags,
		Status:      req.Status,
	}
	tx, err := h.Listings.DB.BeginTx(ctx, nil)
	if err != nil {
		return httperr.Store(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Listings.CreateTx(ctx, tx, &l); err != nil {
		return httperr.Store(err)
	}
	j := model.Job{ListingID: l.ID, MinRate: req.MinRate, MaxRate: req.MaxRate, StartDate: start, EndDate: end}
	if err := h.Listings.CreateJobTx(ctx, tx, &j); err != nil {
		return httperr.Store(err)
	}
	if err := tx.Commit(); err != nil {
		return httperr.Store(err)
	}
	committed = true
	l.Job = &j
	return c.JSON(http.StatusCreated, l)
}

type listingEditReq struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	City        *string  `json:"city"`
	State       *string  `json:"state"`
	Zipcode     *string  `json:"zipcode"`
	CategoryID  *uint64  `json:"categoryId"`
	Tags        []string `json:"tags"`
	Status      *string  `json:"status"`
	IsDeleted   *bool    `json:"isDeleted"`

	MinRate   *float64 `json:"minRate"`
	MaxRate   *float64 `json:"maxRate"`
	StartDate *string  `json:"startDate"`
	EndDate   *string  `json:"endDate"`
}

func (r listingEditReq) fields() map[string]string {
	m := map[string]string{}
	if r.Title != nil {
		m["title"] = *r.Title
	}
	if r.Description != nil {
		m["description"] = *r.Description
	}
	if r.City != nil {
		m["city"] = *r.City
	}
	if r.State != nil {
		m["state"] = *r.State
	}
	if r.Zipcode != nil {
		m["zipcode"] = *r.Zipcode
	}
	if r.Status != nil {
		m["status"] = *r.Status
	}
	return m
}

// editRules relaxes the create-time rules: absent fields stay as
// stored, present fields obey the same bounds.
var editRules = func() []validate.Rule {
	rules := make([]validate.Rule, len(validate.ListingRules))
	copy(rules, validate.ListingRules)
	for i := range rules {
		rules[i].Required = false
	}
	return rules
}()

func (r listingEditReq) update() repository.ListingUpdate {
	return repository.ListingUpdate{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		City:        r.City,
		State:       r.State,
		Zipcode:     r.Zipcode,
		Tags:        r.Tags,
		Status:      r.Status,
		IsDeleted:   r.IsDeleted,
	}
}

// EditListing handles PUT /api/edit-listing/:id.  Only supplied fields
// change; the listing must exist, be visible and belong to the caller.
func (h *ListingHandler) EditListing(c echo.Context) error {
	return h.edit(c, false)
}

// EditJob handles PUT /api/edit-job/:id.  The listing fields and the
// job details change inside one transaction, so a bad job update rolls
// back the listing half too.
func (h *ListingHandler) EditJob(c echo.Context) error {
	return h.edit(c, true)
}

func (h *ListingHandler) edit(c echo.Context, job bool) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid listing id")
	}
	var req listingEditReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	// A listing never moves between categories; in particular a plain
	// listing cannot be turned into a job listing through an edit.
	if req.CategoryID != nil {
		return httperr.BadRequest("categoryId can't be changed")
	}
	if errs := validate.Apply(editRules, req.fields()); len(errs) > 0 {
		return httperr.Validation(errs)
	}
	var jobUpd repository.JobUpdate
	if job {
		var errs []httperr.FieldError
		jobUpd, errs = parseJobUpdate(req)
		if len(errs) > 0 {
			return httperr.Validation(errs)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Listings.DB.BeginTx(ctx, nil)
	if err != nil {
		return httperr.Store(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	l, err := h.Listings.GetOwnedTx(ctx, tx, id, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return httperr.NotFound("Listing not found")
		}
		if errors.Is(err, repository.ErrForbidden) {
			return httperr.Forbidden("You can only edit your own listings")
		}
		return httperr.Store(err)
	}
	if job && l.CategoryID != model.JobCategoryID {
		return httperr.BadRequest("listing is not a job listing")
	}
	if !job && l.CategoryID == model.JobCategoryID {
		return httperr.BadRequest("job listings must be edited through edit-job")
	}

	if err := h.Listings.UpdateTx(ctx, tx, id, req.update()); err != nil {
		return httperr.Store(err)
	}
	if job {
		if err := h.Listings.UpdateJobTx(ctx, tx, id, jobUpd); err != nil {
			if errors.Is(err, repository.ErrJobNotFound) {
				return httperr.NotFound("Job not found")
			}
			return httperr.Store(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return httperr.Store(err)
	}
	committed = true

	updated, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// List handles GET /api/listings: public browse with category and
// free-text filters plus the standard pagination envelope.
func (h *ListingHandler) List(c echo.Context) error {
	params := pagination.FromRequest(c, "updatedDate")
	offset, err := params.Offset()
	if err != nil {
		return err
	}

	var categoryIDs []uint64
	if raw := c.QueryParam("categoryId"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return httperr.BadRequest("invalid categoryId filter")
			}
			categoryIDs = append(categoryIDs, id)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	results, total, err := h.Listings.Search(ctx, repository.ListingSearchQuery{
		CategoryIDs: categoryIDs,
		Query:       c.QueryParam("q"),
		Limit:       params.Limit,
		Offset:      offset,
		Order:       params.OrderClause(listingSortColumns, "updated_date"),
	})
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(params, total, emptyAsList(results)))
}

// GetByID handles GET /api/listings/:id.
func (h *ListingHandler) GetByID(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid listing id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return httperr.NotFound("Listing not found")
		}
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, l)
}

// Mine handles GET /api/my-listings for the authenticated user.
func (h *ListingHandler) Mine(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	params := pagination.FromRequest(c, "updatedDate")
	offset, err := params.Offset()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	results, total, err := h.Listings.ListByUser(ctx, p.ID,
		params.OrderClause(listingSortColumns, "updated_date"), params.Limit, offset)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(params, total, emptyAsList(results)))
}

// ListCategories handles GET /api/categories.
func (h *ListingHandler) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cats, err := h.Categories.List(ctx)
	if err != nil {
		return httperr.Store(err)
	}
	if cats == nil {
		cats = []model.ListingCategory{}
	}
	return c.JSON(http.StatusOK, cats)
}

func parseJobDates(start, end string) (time.Time, time.Time, []httperr.FieldError) {
	var errs []httperr.FieldError
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		errs = append(errs, httperr.FieldError{Field: "startDate", Message: "startDate must be in ISO format"})
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		errs = append(errs, httperr.FieldError{Field: "endDate", Message: "endDate must be in ISO format"})
	}
	if len(errs) == 0 && !e.After(s) {
		errs = append(errs, httperr.FieldError{Field: "endDate", Message: "endDate must be after startDate"})
	}
	return s.UTC(), e.UTC(), errs
}

func parseJobUpdate(req listingEditReq) (repository.JobUpdate, []httperr.FieldError) {
	var (
		upd  repository.JobUpdate
		errs []httperr.FieldError
	)
	upd.MinRate = req.MinRate
	upd.MaxRate = req.MaxRate
	if req.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			errs = append(errs, httperr.FieldError{Field: "startDate", Message: "startDate must be in ISO format"})
		} else {
			u := t.UTC()
			upd.StartDate = &u
		}
	}
	if req.EndDate != nil {
		t, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			errs = append(errs, httperr.FieldError{Field: "endDate", Message: "endDate must be in ISO format"})
		} else {
			u := t.UTC()
			upd.EndDate = &u
		}
	}
	return upd, errs
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// emptyAsList keeps empty pages as [] rather than null in the JSON
// envelope.
func emptyAsList[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
