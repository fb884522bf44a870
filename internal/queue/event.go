// Package queue defines message payloads exchanged over the message broker.
package queue

// ChatMessageEvent is published whenever a conversation message is
// persisted, and accepted from external producers who want to inject
// messages into a request thread. It carries enough information for
// downstream consumers to route and display the message without
// querying the primary database.
type ChatMessageEvent struct {
	ConversationID   uint64 `json:"conversation_id,omitempty"`
	ListingRequestID uint64 `json:"listing_request_id"`
	ListingID        uint64 `json:"listing_id,omitempty"`
	SenderID         string `json:"sender_id"`
	ReceiverID       string `json:"receiver_id"`
	Message          string `json:"message"`
	SentAt           string `json:"sent_at"`
}
