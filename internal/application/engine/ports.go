package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// Transport sends and receives chat traffic through the relay.
type Transport interface {
	Send(ctx context.Context, sellerID, text string) error
	SendAttachment(ctx context.Context, sellerID string, data []byte, caption string) error
	FetchRecentAttachments(ctx context.Context, sellerID string, limit int, since time.Time) ([][]byte, error)
	NotifyOperator(ctx context.Context, text string) error
	NotifyOperatorAttachment(ctx context.Context, data []byte, caption string) error
	RequestOutOfBandAlert(ctx context.Context, operatorID string) error
}

// OfferClassification is the structured result of classifying a
// candidate offer message.
type OfferClassification struct {
	IsOffer    bool
	Category   negotiation.Category
	Confidence float64
}

// ReplyClassification is the structured result of classifying a seller
// reply. Pointer fields are nil when the signal is absent.
type ReplyClassification struct {
	Available          *bool
	Price              *int
	PaymentID          *string
	Agreement          *bool
	HasCoupon          bool
	WaitRequested      bool
	NeedsClarification bool
	Clarification      string
}

// Signal is a detector result with confidence.
type Signal struct {
	Flag       bool
	Confidence float64
}

// Classifier is the language-understanding collaborator. The engine
// only consumes structured results; phrasing and model internals live
// behind this interface.
type Classifier interface {
	ClassifyOffer(ctx context.Context, text string) (OfferClassification, error)
	ClassifyReply(ctx context.Context, text string) (ReplyClassification, error)
	DetectWithdrawal(ctx context.Context, text string) (Signal, error)
	DetectRefundConfirmation(ctx context.Context, text string) (Signal, error)
	DetectUserWithdrawal(ctx context.Context, text string) (bool, error)
	ExtractMess(ctx context.Context, text string) (string, error)
}

// Eligibility is the daily eligibility oracle: queried as a predicate
// before starting a negotiation, informed as a sink when one ends.
type Eligibility interface {
	CanStart(category negotiation.Category) bool
	TargetPrice(category negotiation.Category) int
	// AcceptedMesses returns the accepted sub-categories for a slot;
	// nil means any mess is acceptable.
	AcceptedMesses(category negotiation.Category) []string
	IsExempt(sellerID string) bool
	MarkFulfilled(category negotiation.Category, conversationID uuid.UUID)
	MarkFailed(conversationID uuid.UUID, reason string)
}

// AttachmentStore persists coupon images.
type AttachmentStore interface {
	SaveCoupon(ctx context.Context, category negotiation.Category, data []byte, sellerName string) (string, error)
}

// EventSink publishes engine events to presentation layers.
type EventSink interface {
	Broadcast(event string, payload interface{})
}

// Offer is an inbound signal that a seller has a coupon available.
type Offer struct {
	SellerID    string
	SellerName  string
	Text        string
	ChannelID   string
	ChannelName string
	MessageID   string
}
