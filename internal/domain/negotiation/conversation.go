package negotiation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State represents the negotiation state of a conversation
type State string

const (
	StateInitiatingContact        State = "INITIATING_CONTACT"
	StateAwaitingMessInfo         State = "AWAITING_MESS_INFO"
	StateAwaitingPaymentInfo      State = "AWAITING_PAYMENT_INFO"
	StatePaymentPending           State = "PAYMENT_PENDING"
	StateAwaitingCoupon           State = "AWAITING_COUPON"
	StateAwaitingRefund           State = "AWAITING_REFUND"
	StateAwaitingRefundScreenshot State = "AWAITING_REFUND_SCREENSHOT"
	StateCompleted                State = "COMPLETED"
	StateFailed                   State = "FAILED"
)

// Category is the meal slot being negotiated
type Category string

const (
	CategoryLunch  Category = "LUNCH"
	CategoryDinner Category = "DINNER"
)

// Direction marks who sent a chat message
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// MaxHistory bounds the per-conversation message log; oldest entries
// are evicted first.
const MaxHistory = 200

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyTerminal   = errors.New("conversation already terminal")
)

// ChatMessage is one entry of the conversation message log.
type ChatMessage struct {
	Direction     Direction `json:"direction"`
	Text          string    `json:"text"`
	SentAt        time.Time `json:"sentAt"`
	HasAttachment bool      `json:"hasAttachment"`
}

// Conversation represents one negotiation with a seller.
type Conversation struct {
	ID         uuid.UUID `json:"id"`
	SellerID   string    `json:"sellerId"`
	SellerName string    `json:"sellerName"`

	Category    Category `json:"category"`
	TargetPrice int      `json:"targetPrice"`
	PaymentID   *string  `json:"paymentId,omitempty"`
	Mess        *string  `json:"mess,omitempty"`

	OriginChannelID   string `json:"originChannelId"`
	OriginChannelName string `json:"originChannelName"`
	OriginMessageID   string `json:"originMessageId"`

	State         State   `json:"state"`
	FollowUpCount int     `json:"followUpCount"`
	CancelCount   int     `json:"cancelCount"`
	FailureReason *string `json:"failureReason,omitempty"`

	RefundRequested     bool `json:"refundRequested"`
	RefundReceived      bool `json:"refundReceived"`
	RefundProofReceived bool `json:"refundProofReceived"`

	History []ChatMessage `json:"history"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FollowUpAt  *time.Time `json:"followUpAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewConversation creates a conversation in its initial state.
func NewConversation(sellerID, sellerName string, category Category, targetPrice int) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:          uuid.New(),
		SellerID:    sellerID,
		SellerName:  sellerName,
		Category:    category,
		TargetPrice: targetPrice,
		State:       StateInitiatingContact,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetOrigin records where the offer was seen.
func (c *Conversation) SetOrigin(channelID, channelName, messageID string) {
	c.OriginChannelID = channelID
	c.OriginChannelName = channelName
	c.OriginMessageID = messageID
}

// Clone returns a snapshot for readers outside the engine's lock. The
// history slice is copied; pointer fields are replaced, never mutated
// in place, so sharing them is safe.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.History = append([]ChatMessage(nil), c.History...)
	return &cp
}

// Terminal reports whether the conversation has reached a final state.
func (c *Conversation) Terminal() bool {
	return c.State == StateCompleted || c.State == StateFailed
}

// CanTransitionTo checks if a transition to the target state is valid
func (c *Conversation) CanTransitionTo(target State) bool {
	transitions := map[State][]State{
		StateInitiatingContact:        {StateAwaitingPaymentInfo, StateFailed},
		StateAwaitingMessInfo:         {StateAwaitingPaymentInfo, StateFailed},
		StateAwaitingPaymentInfo:      {StatePaymentPending, StateFailed},
		StatePaymentPending:           {StateAwaitingCoupon, StateCompleted, StateFailed},
		StateAwaitingCoupon:           {StateCompleted, StateAwaitingRefund, StateFailed},
		StateAwaitingRefund:           {StateAwaitingRefundScreenshot, StateFailed},
		StateAwaitingRefundScreenshot: {StateFailed},
		StateCompleted:                {},
		StateFailed:                   {},
	}

	allowed, ok := transitions[c.State]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the conversation to the target state. The first
// transition into a terminal state stamps CompletedAt.
func (c *Conversation) TransitionTo(target State) error {
	if c.Terminal() {
		return ErrAlreadyTerminal
	}
	if !c.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	c.State = target
	now := time.Now().UTC()
	c.UpdatedAt = now
	if c.Terminal() && c.CompletedAt == nil {
		c.CompletedAt = &now
	}
	return nil
}

// MarkCompleted finalizes the conversation as purchased.
func (c *Conversation) MarkCompleted() error {
	return c.TransitionTo(StateCompleted)
}

// MarkFailed finalizes the conversation with a failure reason.
func (c *Conversation) MarkFailed(reason string) error {
	if err := c.TransitionTo(StateFailed); err != nil {
		return err
	}
	c.FailureReason = &reason
	return nil
}

// AppendMessage appends a chat message to the bounded history log.
func (c *Conversation) AppendMessage(direction Direction, text string, hasAttachment bool) {
	c.History = append(c.History, ChatMessage{
		Direction:     direction,
		Text:          text,
		SentAt:        time.Now().UTC(),
		HasAttachment: hasAttachment,
	})
	if len(c.History) > MaxHistory {
		c.History = c.History[len(c.History)-MaxHistory:]
	}
	c.UpdatedAt = time.Now().UTC()
}

// SetPaymentID records the learned payment identifier.
func (c *Conversation) SetPaymentID(id string) {
	c.PaymentID = &id
	c.UpdatedAt = time.Now().UTC()
}

// SetMess records the mess learned during negotiation.
func (c *Conversation) SetMess(mess string) {
	c.Mess = &mess
	c.UpdatedAt = time.Now().UTC()
}

// Touch bumps the last-updated timestamp.
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// VisibleAt reports whether the conversation should appear in listings
// at the given instant: every open conversation, plus terminal ones
// inside the post-completion window.
func (c *Conversation) VisibleAt(now time.Time, window time.Duration) bool {
	if !c.Terminal() {
		return true
	}
	if c.CompletedAt == nil {
		return false
	}
	return now.Sub(*c.CompletedAt) <= window
}
