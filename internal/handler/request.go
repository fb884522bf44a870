package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/pagination"
	"github.com/ngconnect/marketplace-api/internal/queue"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/validate"
)

// ChatPublisher fans a persisted conversation message out over the
// message broker. A nil publisher disables fan-out without touching
// the request flow.
type ChatPublisher func(ctx context.Context, event queue.ChatMessageEvent) error

// RequestHandler serves listing request endpoints. Creating a request
// writes the request row, its reservation dates and the opening
// message in one transaction; the conversation participant pair is
// frozen by that opening message.
type RequestHandler struct {
	Requests *repository.RequestRepo
	Listings *repository.ListingRepo
	Publish  ChatPublisher
	Log      zerolog.Logger
}

func NewRequestHandler(r *repository.RequestRepo, l *repository.ListingRepo, publish ChatPublisher, log zerolog.Logger) *RequestHandler {
	return &RequestHandler{Requests: r, Listings: l, Publish: publish, Log: log}
}

type createRequestReq struct {
	ListingID        uint64   `json:"listingId"`
	Message          string   `json:"message"`
	ReservationDates []string `json:"reservationDates"`
}

type sendMessageReq struct {
	ListingRequestID uint64 `json:"listingRequestId"`
	ReceiverID       string `json:"receiverId"`
	Message          string `json:"message"`
}

// conversationSortColumns whitelists sort keys for message threads.
var conversationSortColumns = map[string]string{
	"createdDate": "created_date",
}

// Create handles POST /api/requests. Preconditions checked in order:
// the caller must not already have a request against the listing, the
// listing must exist and be visible, and must not belong to the
// caller. Every reservation date must lie more than a day in the
// future. All precondition failures answer 400.
func (h *RequestHandler) Create(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req createRequestReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if req.ListingID == 0 {
		return httperr.BadRequest("listingId is required")
	}
	fieldErrs := validate.Message(req.Message)
	dates, dateErrs := validate.ReservationDates(req.ReservationDates, time.Now().UTC())
	fieldErrs = append(fieldErrs, dateErrs...)
	if len(fieldErrs) > 0 {
		return httperr.Validation(fieldErrs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Requests.Exists(ctx, p.ID, req.ListingID)
	if err != nil {
		return httperr.Store(err)
	}
	if exists {
		return httperr.BadRequest("request already exists")
	}
	listing, err := h.Listings.GetByID(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return httperr.BadRequest("Listing doesn't exist")
		}
		return httperr.Store(err)
	}
	if listing.CreatedUser == p.ID {
		return httperr.BadRequest("you cannot request your own listing")
	}

	tx, err := h.Requests.DB.BeginTx(ctx, nil)
	if err != nil {
		return httperr.Store(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	request := model.ListingRequest{ListingID: req.ListingID, CreatedUser: p.ID}
	if err := h.Requests.CreateTx(ctx, tx, &request); err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			return httperr.BadRequest("request already exists")
		}
		return httperr.Store(err)
	}
	if err := h.Requests.AddReservationDatesTx(ctx, tx, request.ID, dates); err != nil {
		return httperr.Store(err)
	}
	opening := model.Conversation{
		ListingRequestID: request.ID,
		Message:          req.Message,
		SenderID:         p.ID,
		ReceiverID:       listing.CreatedUser,
	}
	if err := h.Requests.AddConversationTx(ctx, tx, &opening); err != nil {
		return httperr.Store(err)
	}
	if err := tx.Commit(); err != nil {
		return httperr.Store(err)
	}
	committed = true

	h.broadcast(listing.ID, opening)

	created, err := h.Requests.GetByIDForUser(ctx, request.ID, p.ID)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// SendMessage handles POST /api/requests/message. Sender and receiver
// must both belong to the participant pair fixed by the thread's first
// message and must differ. Every failure on those rules answers 400.
func (h *RequestHandler) SendMessage(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if req.ListingRequestID == 0 {
		return httperr.BadRequest("listingRequestId is required")
	}
	if req.ReceiverID == "" {
		return httperr.BadRequest("receiverId is required")
	}
	if errs := validate.Message(req.Message); len(errs) > 0 {
		return httperr.Validation(errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	conv := model.Conversation{
		ListingRequestID: req.ListingRequestID,
		Message:          req.Message,
		SenderID:         p.ID,
		ReceiverID:       req.ReceiverID,
	}
	if err := h.Requests.AppendMessage(ctx, &conv); err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestNotFound):
			return httperr.BadRequest("Request doesn't exist")
		case errors.Is(err, repository.ErrNotParticipant):
			return httperr.BadRequest("You are not part of this conversation")
		case errors.Is(err, repository.ErrSelfMessage):
			return httperr.BadRequest("sender and receiver must differ")
		default:
			return httperr.Store(err)
		}
	}

	h.broadcast(0, conv)

	return c.JSON(http.StatusCreated, conv)
}

// GetByID handles GET /api/requests/:id. The lookup is scoped to the
// creator; anyone else gets 404 so request IDs are not probeable.
func (h *RequestHandler) GetByID(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid request id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	req, err := h.Requests.GetByIDForUser(ctx, id, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return httperr.NotFound("Request not found")
		}
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, req)
}

// ByListing handles GET /api/requests/by-listing-id/:listingId. Only
// the listing owner may read the requests against it. Requests appear
// newest conversation first.
func (h *RequestHandler) ByListing(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	listingID, err := parseID(c.Param("listingId"))
	if err != nil {
		return httperr.BadRequest("invalid listing id")
	}
	params := pagination.FromRequest(c, "updatedDate")
	offset, err := params.Offset()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listing, err := h.Listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return httperr.NotFound("Listing not found")
		}
		return httperr.Store(err)
	}
	if listing.CreatedUser != p.ID {
		return httperr.Forbidden("You can only view requests for your own listings")
	}

	results, total, err := h.Requests.ListByListing(ctx, listingID, params.Limit, offset)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(params, total, emptyAsList(results)))
}

// ByUser handles GET /api/requests/by-user-id/:userId. Users may only
// list their own requests.
func (h *RequestHandler) ByUser(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	userID := c.Param("userId")
	if userID == "" {
		return httperr.BadRequest("invalid user id")
	}
	if userID != p.ID {
		return httperr.Forbidden("You can only view your own requests")
	}
	params := pagination.FromRequest(c, "updatedDate")
	offset, err := params.Offset()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	results, total, err := h.Requests.ListByUser(ctx, userID, params.Limit, offset)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(params, total, emptyAsList(results)))
}

// Conversation handles GET /api/requests/conversation/:requestId, the
// paginated message thread of a request, visible to the creator and
// the thread participants.
func (h *RequestHandler) Conversation(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	requestID, err := parseID(c.Param("requestId"))
	if err != nil {
		return httperr.BadRequest("invalid request id")
	}
	params := pagination.FromRequest(c, "createdDate")
	offset, err := params.Offset()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	msgs, total, err := h.Requests.Conversations(ctx, requestID, p.ID,
		params.OrderClause(conversationSortColumns, "created_date"), params.Limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestNotFound):
			return httperr.NotFound("Request not found")
		case errors.Is(err, repository.ErrForbidden):
			return httperr.Forbidden("You are not part of this conversation")
		default:
			return httperr.Store(err)
		}
	}
	return c.JSON(http.StatusOK, pagination.NewPage(params, total, emptyAsList(msgs)))
}

// broadcast fans a persisted message out to the room exchange. The
// message is already durable in the database, so broker failures are
// logged and dropped.
func (h *RequestHandler) broadcast(listingID uint64, conv model.Conversation) {
	if h.Publish == nil {
		return
	}
	ev := queue.ChatMessageEvent{
		ConversationID:   conv.ID,
		ListingRequestID: conv.ListingRequestID,
		ListingID:        listingID,
		SenderID:         conv.SenderID,
		ReceiverID:       conv.ReceiverID,
		Message:          conv.Message,
		SentAt:           conv.CreatedDate.Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Publish(ctx, ev); err != nil {
		h.Log.Warn().Err(err).Uint64("request_id", conv.ListingRequestID).Msg("chat broadcast failed")
	}
}
