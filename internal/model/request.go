package model

import "time"

// ListingRequest mirrors the `listing_requests` table: one user's
// interest in one listing.  The (created_user, listing_id) pair is
// unique.  ReservationDates and Conversations are owned by the request
// and only ever read or written through it.
type ListingRequest struct {
	ID               uint64            `json:"id"`
	ListingID        uint64            `json:"listingId"`
	CreatedUser      string            `json:"createdUser"`
	CreatedDate      time.Time         `json:"createdDate"`
	UpdatedDate      time.Time         `json:"updatedDate"`
	ReservationDates []ReservationDate `json:"reservationDates,omitempty"`
	Conversations    []Conversation    `json:"conversations,omitempty"`
}

// ReservationDate mirrors the `reservation_dates` table.  Rows are
// inserted as a batch in the same transaction that creates their
// request; each date must be strictly later than now+24h at creation.
type ReservationDate struct {
	ID               uint64    `json:"id"`
	ListingRequestID uint64    `json:"listingRequestId"`
	ReservationDate  time.Time `json:"reservationDate"`
	CreatedDate      time.Time `json:"createdDate"`
	UpdatedDate      time.Time `json:"updatedDate"`
}

// Conversation mirrors the `conversations` table: one message inside the
// exchange scoped to a listing request.  The first row is written by
// createRequest and fixes the two legitimate participants (requester and
// listing owner) for the lifetime of the request.
type Conversation struct {
	ID               uint64    `json:"id"`
	ListingRequestID uint64    `json:"listingRequestId"`
	Message          string    `json:"message"`
	SenderID         string    `json:"senderId"`
	ReceiverID       string    `json:"receiverId"`
	CreatedDate      time.Time `json:"createdDate"`
}
