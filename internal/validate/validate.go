// Package validate checks request bodies before a workflow runs.  Column
// constraints live in static rule tables rather than on the entity types;
// each table entry describes one field and Apply walks the table against
// the flattened body, collecting {field, message} pairs for every
// violation.
package validate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ngconnect/marketplace-api/internal/httperr"
)

var (
	alphaRe   = regexp.MustCompile(`^[A-Za-z]+$`)
	numericRe = regexp.MustCompile(`^[0-9]+$`)
	emailRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Rule declares the constraints of a single field.  Zero values disable a
// check; length bounds apply only when MaxLen > 0.
type Rule struct {
	Field    string
	Required bool
	MinLen   int
	MaxLen   int
	Alpha    bool
	Numeric  bool
	Email    bool
	OneOf    []string
}

// Apply evaluates every rule against the supplied field values and
// returns one FieldError per violation.  Optional fields that are absent
// are skipped entirely.
func Apply(rules []Rule, values map[string]string) []httperr.FieldError {
	var out []httperr.FieldError
	for _, r := range rules {
		v := values[r.Field]
		if v == "" {
			if r.Required {
				out = append(out, httperr.FieldError{Field: r.Field, Message: r.Field + " must not be empty"})
			}
			continue
		}
		if r.MaxLen > 0 && (len(v) < r.MinLen || len(v) > r.MaxLen) {
			out = append(out, httperr.FieldError{
				Field:   r.Field,
				Message: fmt.Sprintf("%s must be between %d and %d characters", r.Field, r.MinLen, r.MaxLen),
			})
			continue
		}
		if r.Alpha && !alphaRe.MatchString(v) {
			out = append(out, httperr.FieldError{Field: r.Field, Message: r.Field + " must contain only letters"})
			continue
		}
		if r.Numeric && !numericRe.MatchString(v) {
			out = append(out, httperr.FieldError{Field: r.Field, Message: r.Field + " must contain only digits"})
			continue
		}
		if r.Email && !emailRe.MatchString(v) {
			out = append(out, httperr.FieldError{Field: r.Field, Message: r.Field + " must be a valid email address"})
			continue
		}
		if len(r.OneOf) > 0 && !contains(r.OneOf, v) {
			out = append(out, httperr.FieldError{Field: r.Field, Message: r.Field + " has an invalid value"})
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// UserRules constrains registration bodies.
var UserRules = []Rule{
	{Field: "firstName", Required: true, MinLen: 3, MaxLen: 20, Alpha: true},
	{Field: "lastName", Required: true, MinLen: 3, MaxLen: 20, Alpha: true},
	{Field: "email", Required: true, Email: true},
	{Field: "role", OneOf: []string{"ADMIN", "BUSINESS", "USER"}},
	{Field: "address", MinLen: 5, MaxLen: 50},
	{Field: "city", Required: true, MinLen: 2, MaxLen: 50, Alpha: true},
	{Field: "state", Required: true, MinLen: 2, MaxLen: 20, Alpha: true},
	{Field: "zipcode", MinLen: 5, MaxLen: 10, Numeric: true},
	{Field: "phone", Required: true, MinLen: 5, MaxLen: 15},
	{Field: "password", Required: true},
}

// ListingRules constrains listing and job-listing bodies.
var ListingRules = []Rule{
	{Field: "title", Required: true, MinLen: 2, MaxLen: 100},
	{Field: "description", Required: true},
	{Field: "city", Required: true, MinLen: 2, MaxLen: 20, Alpha: true},
	{Field: "state", Required: true, MinLen: 2, MaxLen: 15, Alpha: true},
	{Field: "zipcode", Required: true, MinLen: 5, MaxLen: 10, Numeric: true},
	{Field: "status", OneOf: []string{"ACTIVE", "IN_PROGRESS", "COMPLETED"}},
}

// Message checks conversation message bounds (1-500 characters).
func Message(msg string) []httperr.FieldError {
	if len(msg) == 0 {
		return []httperr.FieldError{{Field: "message", Message: "Message is required"}}
	}
	if len(msg) > 500 {
		return []httperr.FieldError{{Field: "message", Message: "Message cannot exceed 500 characters"}}
	}
	return nil
}

// ReservationDates parses ISO reservation dates and enforces that each is
// strictly later than now+24h.  At least one date is required.
func ReservationDates(raw []string, now time.Time) ([]time.Time, []httperr.FieldError) {
	if len(raw) == 0 {
		return nil, []httperr.FieldError{{Field: "reservationDates", Message: "At least one dateTime is required"}}
	}
	cutoff := now.Add(24 * time.Hour)
	var errs []httperr.FieldError
	dates := make([]time.Time, 0, len(raw))
	for i, s := range raw {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			errs = append(errs, httperr.FieldError{
				Field:   fmt.Sprintf("reservationDates.%d", i),
				Message: "Each dateTime must be in ISO format",
			})
			continue
		}
		if !t.After(cutoff) {
			errs = append(errs, httperr.FieldError{
				Field:   fmt.Sprintf("reservationDates.%d", i),
				Message: "Each dateTime must be 1 day in the future",
			})
			continue
		}
		dates = append(dates, t.UTC())
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return dates, nil
}
