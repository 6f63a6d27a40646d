package outcome

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// Result classifies how a negotiation ended
type Result string

const (
	ResultPurchased Result = "PURCHASED"
	ResultFailed    Result = "FAILED"
)

// Record is one finished negotiation, kept for audit and history.
type Record struct {
	ID             int64                `json:"id"`
	RecordID       uuid.UUID            `json:"recordId"`
	ConversationID uuid.UUID            `json:"conversationId"`
	SellerID       string               `json:"sellerId"`
	SellerName     string               `json:"sellerName"`
	Category       negotiation.Category `json:"category"`
	Mess           *string              `json:"mess,omitempty"`
	Result         Result               `json:"result"`
	Reason         *string              `json:"reason,omitempty"`
	PricePaid      *int                 `json:"pricePaid,omitempty"`
	CouponRef      *string              `json:"couponRef,omitempty"`

	RefundRequested bool `json:"refundRequested"`
	RefundReceived  bool `json:"refundReceived"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewRecord builds an outcome record from a finished conversation.
func NewRecord(c *negotiation.Conversation, result Result) *Record {
	return &Record{
		RecordID:        uuid.New(),
		ConversationID:  c.ID,
		SellerID:        c.SellerID,
		SellerName:      c.SellerName,
		Category:        c.Category,
		Mess:            c.Mess,
		Result:          result,
		Reason:          c.FailureReason,
		RefundRequested: c.RefundRequested,
		RefundReceived:  c.RefundReceived,
		CreatedAt:       time.Now().UTC(),
	}
}
