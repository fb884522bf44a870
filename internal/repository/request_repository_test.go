package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
)

// createRequest seeds a complete request the way the handler does:
// the request row, its reservation dates and the opening message in
// one committed transaction.
func createRequest(t *testing.T, db *sql.DB, requester, owner string, listingID uint64, dates []time.Time, msg string) model.ListingRequest {
	t.Helper()
	r := repository.NewRequestRepo(db)
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	req := model.ListingRequest{ListingID: listingID, CreatedUser: requester}
	if err := r.CreateTx(ctx, tx, &req); err != nil {
		_ = tx.Rollback()
		t.Fatalf("create request: %v", err)
	}
	if err := r.AddReservationDatesTx(ctx, tx, req.ID, dates); err != nil {
		_ = tx.Rollback()
		t.Fatalf("add dates: %v", err)
	}
	c := model.Conversation{ListingRequestID: req.ID, Message: msg, SenderID: requester, ReceiverID: owner}
	if err := r.AddConversationTx(ctx, tx, &c); err != nil {
		_ = tx.Rollback()
		t.Fatalf("add conversation: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return req
}

func TestRequestRepo_CreateWithDatesAndOpeningMessage(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@req.com")
	requester := seedUser(t, db, "req@req.com")
	l := seedListing(t, db, owner.ID, 2, "Cabin")
	r := repository.NewRequestRepo(db)

	dates := []time.Time{futureDate(2), futureDate(3), futureDate(4)}
	req := createRequest(t, db, requester.ID, owner.ID, l.ID, dates, "is it free?")

	got, err := r.GetByIDForUser(context.Background(), req.ID, requester.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ReservationDates) != 3 {
		t.Fatalf("dates = %d, want 3", len(got.ReservationDates))
	}
	if len(got.Conversations) != 1 || got.Conversations[0].Message != "is it free?" {
		t.Fatalf("unexpected conversations: %+v", got.Conversations)
	}
	if got.Conversations[0].SenderID != requester.ID || got.Conversations[0].ReceiverID != owner.ID {
		t.Fatalf("opening message participants wrong: %+v", got.Conversations[0])
	}
}

func TestRequestRepo_DuplicatePairRejected(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@dup.com")
	requester := seedUser(t, db, "req@dup.com")
	l := seedListing(t, db, owner.ID, 2, "Boat")
	r := repository.NewRequestRepo(db)
	ctx := context.Background()

	createRequest(t, db, requester.ID, owner.ID, l.ID, []time.Time{futureDate(2)}, "hi")

	exists, err := r.Exists(ctx, requester.ID, l.ID)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected existing pair to be reported")
	}

	tx, _ := db.BeginTx(ctx, nil)
	dup := model.ListingRequest{ListingID: l.ID, CreatedUser: requester.ID}
	err = r.CreateTx(ctx, tx, &dup)
	_ = tx.Rollback()
	if !errors.Is(err, repository.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestRequestRepo_RollbackLeavesNothing(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@rb.com")
	requester := seedUser(t, db, "req@rb.com")
	l := seedListing(t, db, owner.ID, 2, "Tent")
	r := repository.NewRequestRepo(db)
	ctx := context.Background()

	tx, _ := db.BeginTx(ctx, nil)
	req := model.ListingRequest{ListingID: l.ID, CreatedUser: requester.ID}
	if err := r.CreateTx(ctx, tx, &req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.AddReservationDatesTx(ctx, tx, req.ID, []time.Time{futureDate(2)}); err != nil {
		t.Fatalf("dates: %v", err)
	}
	_ = tx.Rollback()

	exists, err := r.Exists(ctx, requester.ID, l.ID)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("rolled-back request still visible")
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reservation_dates`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("orphaned reservation dates: %d", n)
	}
}

func TestRequestRepo_AppendMessageGuards(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@msg.com")
	requester := seedUser(t, db, "req@msg.com")
	stranger := seedUser(t, db, "nosy@msg.com")
	l := seedListing(t, db, owner.ID, 2, "Kayak")
	r := repository.NewRequestRepo(db)
	ctx := context.Background()

	req := createRequest(t, db, requester.ID, owner.ID, l.ID, []time.Time{futureDate(2)}, "hello")

	// Owner replies to the requester.
	reply := model.Conversation{ListingRequestID: req.ID, Message: "sure", SenderID: owner.ID, ReceiverID: requester.ID}
	if err := r.AppendMessage(ctx, &reply); err != nil {
		t.Fatalf("owner reply: %v", err)
	}

	// A third party can neither send nor receive.
	err := r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: req.ID, Message: "me too", SenderID: stranger.ID, ReceiverID: owner.ID})
	if !errors.Is(err, repository.ErrNotParticipant) {
		t.Fatalf("stranger sender: got %v", err)
	}
	err = r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: req.ID, Message: "psst", SenderID: owner.ID, ReceiverID: stranger.ID})
	if !errors.Is(err, repository.ErrNotParticipant) {
		t.Fatalf("stranger receiver: got %v", err)
	}

	// Sender and receiver must differ.
	err = r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: req.ID, Message: "note to self", SenderID: owner.ID, ReceiverID: owner.ID})
	if !errors.Is(err, repository.ErrSelfMessage) {
		t.Fatalf("self message: got %v", err)
	}

	// Unknown request.
	err = r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: 9999, Message: "void", SenderID: owner.ID, ReceiverID: requester.ID})
	if !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("missing request: got %v", err)
	}
}

func TestRequestRepo_GetByIDScopedToCreator(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@scope.com")
	requester := seedUser(t, db, "req@scope.com")
	l := seedListing(t, db, owner.ID, 2, "Trailer")
	r := repository.NewRequestRepo(db)

	req := createRequest(t, db, requester.ID, owner.ID, l.ID, []time.Time{futureDate(2)}, "hi")

	// Even the listing owner gets not-found on the creator-scoped read.
	if _, err := r.GetByIDForUser(context.Background(), req.ID, owner.ID); !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for non-creator, got %v", err)
	}
}

func TestRequestRepo_ListOrderedByLatestMessage(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@order.com")
	alice := seedUser(t, db, "alice@order.com")
	bob := seedUser(t, db, "bob@order.com")
	l := seedListing(t, db, owner.ID, 2, "Workshop")
	r := repository.NewRequestRepo(db)
	ctx := context.Background()

	first := createRequest(t, db, alice.ID, owner.ID, l.ID, []time.Time{futureDate(2)}, "alice here")
	second := createRequest(t, db, bob.ID, owner.ID, l.ID, []time.Time{futureDate(3)}, "bob here")

	// A fresh message on the first request moves it to the front.
	time.Sleep(5 * time.Millisecond)
	if err := r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: first.ID, Message: "still interested", SenderID: alice.ID, ReceiverID: owner.ID}); err != nil {
		t.Fatalf("append: %v", err)
	}

	results, total, err := r.ListByListing(ctx, l.ID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("total=%d len=%d, want 2", total, len(results))
	}
	if results[0].ID != first.ID || results[1].ID != second.ID {
		t.Fatalf("order = [%d %d], want [%d %d]", results[0].ID, results[1].ID, first.ID, second.ID)
	}
	if len(results[0].Conversations) != 2 {
		t.Fatalf("expected thread eager-loaded, got %d messages", len(results[0].Conversations))
	}

	byUser, total, err := r.ListByUser(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if total != 1 || len(byUser) != 1 || byUser[0].ID != first.ID {
		t.Fatalf("unexpected by-user page: total=%d %+v", total, byUser)
	}
}

func TestRequestRepo_ConversationsVisibility(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@conv.com")
	requester := seedUser(t, db, "req@conv.com")
	stranger := seedUser(t, db, "nosy@conv.com")
	l := seedListing(t, db, owner.ID, 2, "Garage")
	r := repository.NewRequestRepo(db)
	ctx := context.Background()

	req := createRequest(t, db, requester.ID, owner.ID, l.ID, []time.Time{futureDate(2)}, "ping")
	if err := r.AppendMessage(ctx, &model.Conversation{
		ListingRequestID: req.ID, Message: "pong", SenderID: owner.ID, ReceiverID: requester.ID}); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, total, err := r.Conversations(ctx, req.ID, owner.ID, "created_date ASC", 10, 0)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if total != 2 || len(msgs) != 2 || msgs[0].Message != "ping" {
		t.Fatalf("unexpected thread: total=%d %+v", total, msgs)
	}

	if _, _, err := r.Conversations(ctx, req.ID, stranger.ID, "created_date ASC", 10, 0); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("stranger read: got %v", err)
	}
	if _, _, err := r.Conversations(ctx, 9999, owner.ID, "created_date ASC", 10, 0); !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("missing request: got %v", err)
	}
}
