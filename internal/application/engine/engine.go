package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
	"github.com/dealdesk/dealdesk/internal/domain/outcome"
)

// Failure reasons recorded on terminal conversations.
const (
	ReasonOfferWithdrawn      = "offer withdrawn"
	ReasonPriceExceeded       = "price exceeded"
	ReasonCategoryMismatch    = "category mismatch"
	ReasonOperatorDeclined    = "operator declined"
	ReasonOperatorTimeout     = "operator confirmation timed out"
	ReasonPaymentNotConfirmed = "payment not confirmed"
	ReasonSellerCancelled     = "counterparty cancelled"
	ReasonRefundReceived      = "cancelled post-payment: refund received"
	ReasonInactivityTimeout   = "inactivity timeout"
	ReasonSuperseded          = "superseded by another resumed negotiation"
	ReasonManual              = "manually failed"
)

// Engine drives negotiations: it owns the conversation store and the
// active slot, performs state transitions, and composes the checkpoint
// registry, follow-up timers, and the image reconciliation buffer.
//
// Dispatch is serialized by a single mutex: one event (inbound message,
// timer fire, checkpoint resolution) is handled at a time. Checkpoint
// waits never hold the mutex, so a blocked decision stalls nothing.
type Engine struct {
	mu    sync.Mutex
	store *negotiation.Store
	slot  negotiation.ActiveSlot

	repo        negotiation.Repository
	outcomes    outcome.Repository
	transport   Transport
	nlu         Classifier
	oracle      Eligibility
	attachments AttachmentStore
	events      EventSink

	checkpoints *Checkpoints
	buffer      *ImageBuffer
	followUps   *followUpTimers

	cfg    Config
	logger zerolog.Logger
}

// New creates a negotiation engine.
func New(
	repo negotiation.Repository,
	outcomes outcome.Repository,
	transport Transport,
	nlu Classifier,
	oracle Eligibility,
	attachments AttachmentStore,
	events EventSink,
	cfg Config,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		store:       negotiation.NewStore(),
		repo:        repo,
		outcomes:    outcomes,
		transport:   transport,
		nlu:         nlu,
		oracle:      oracle,
		attachments: attachments,
		events:      events,
		checkpoints: NewCheckpoints(),
		buffer:      NewImageBuffer(),
		followUps:   newFollowUpTimers(),
		cfg:         cfg,
		logger:      logger.With().Str("service", "engine").Logger(),
	}
}

// AcceptOffer evaluates an inbound offer and opens a negotiation.
// Returns nil when the offer is ineligible, a duplicate, or the active
// slot is occupied by a different seller.
func (e *Engine) AcceptOffer(ctx context.Context, o Offer) *negotiation.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()

	oc, err := e.nlu.ClassifyOffer(ctx, o.Text)
	if err != nil {
		e.logger.Warn().Err(err).Str("seller_id", o.SellerID).Msg("offer classification failed")
		return nil
	}
	if !oc.IsOffer {
		return nil
	}
	if !e.oracle.CanStart(oc.Category) {
		e.logger.Debug().Str("category", string(oc.Category)).Msg("category not eligible today")
		return nil
	}

	// Duplicate detection: reuse an open conversation for the same
	// seller and category inside the lookback window.
	since := time.Now().UTC().Add(-e.cfg.DuplicateLookback)
	if existing := e.store.FindRecentBySellerCategory(o.SellerID, oc.Category, since); existing != nil && !existing.Terminal() {
		return existing
	}

	// One open conversation per seller, whatever the category. Holds
	// even when a follow-up soft-fail already released the slot.
	if open := e.store.FindOpenBySeller(o.SellerID); open != nil {
		e.logger.Debug().
			Str("seller_id", o.SellerID).
			Str("conversation_id", open.ID.String()).
			Msg("seller already in an open negotiation; offer rejected")
		return nil
	}

	if cur, held := e.slot.Current(); held {
		if active := e.store.Get(cur); active != nil && active.SellerID != o.SellerID {
			e.logger.Debug().
				Str("seller_id", o.SellerID).
				Str("active_conversation", cur.String()).
				Msg("active slot occupied; offer rejected")
			return nil
		}
	}

	c := negotiation.NewConversation(o.SellerID, o.SellerName, oc.Category, e.oracle.TargetPrice(oc.Category))
	c.SetOrigin(o.ChannelID, o.ChannelName, o.MessageID)

	mess, err := e.nlu.ExtractMess(ctx, o.Text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("mess extraction failed")
	}
	if mess != "" {
		c.SetMess(mess)
	} else {
		// Initial state depends on whether the offer names the mess.
		c.State = negotiation.StateAwaitingMessInfo
	}

	if !e.slot.Claim(c.ID) {
		return nil
	}
	e.store.Put(c)

	if mess != "" {
		e.say(ctx, c, fmt.Sprintf("Hi %s! I saw your %s coupon offer, I'm interested. Is it still available?", c.SellerName, categoryLabel(c.Category)))
	} else {
		e.say(ctx, c, fmt.Sprintf("Hi %s! I saw your %s coupon offer, I'm interested. Which mess is it from?", c.SellerName, categoryLabel(c.Category)))
	}
	e.persist(ctx, c)
	e.broadcast("negotiation.started", c)
	e.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("seller_id", c.SellerID).
		Str("category", string(c.Category)).
		Msg("negotiation started")
	return c
}

// HandleSellerMessage dispatches an inbound seller message to the
// handler for its conversation's current state. Messages without a
// matching open conversation are logged and dropped.
func (e *Engine) HandleSellerMessage(ctx context.Context, sellerID, text string, attachment []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.store.FindOpenBySeller(sellerID)
	if c == nil {
		e.logger.Debug().Str("seller_id", sellerID).Msg("message without open conversation; ignored")
		return
	}
	c.AppendMessage(negotiation.DirectionInbound, text, len(attachment) > 0)

	if len(attachment) > 0 {
		e.buffer.Observe(c.ID, attachment)
		e.handleAttachment(ctx, c, attachment)
		if c.Terminal() {
			return
		}
	}
	if text != "" {
		e.routeText(ctx, c, text)
	}
	if !c.Terminal() {
		e.persist(ctx, c)
	}
}

// HandleOperatorMessage interprets an operator chat reply as a
// checkpoint decision for the active conversation.
func (e *Engine) HandleOperatorMessage(ctx context.Context, text string) {
	active, held := e.slot.Current()
	if !held {
		return
	}
	kind, pending := e.checkpoints.Pending(active)
	if !pending {
		return
	}
	if withdrawn, err := e.nlu.DetectUserWithdrawal(ctx, text); err == nil && withdrawn {
		e.checkpoints.Resolve(active, kind, false)
		return
	}
	cls, err := e.nlu.ClassifyReply(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("operator reply classification failed")
		return
	}
	if cls.Agreement != nil && *cls.Agreement {
		e.checkpoints.Resolve(active, kind, true)
	}
}

// ResolveCheckpoint settles a pending human decision for a
// conversation. Callable from any channel; first resolution wins.
func (e *Engine) ResolveCheckpoint(conversationID uuid.UUID, kind CheckpointKind, value bool) error {
	if !e.checkpoints.Resolve(conversationID, kind, value) {
		return fmt.Errorf("no pending %s checkpoint for %s", kind, conversationID)
	}
	return nil
}

// ListVisible returns snapshots of open conversations plus recently
// finished ones. Copies, not live entities: callers read them after
// the lock is released while dispatch keeps mutating the originals.
func (e *Engine) ListVisible() []*negotiation.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	visible := e.store.ListVisible(time.Now().UTC(), e.cfg.VisibilityWindow)
	out := make([]*negotiation.Conversation, len(visible))
	for i, c := range visible {
		out[i] = c.Clone()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a snapshot of a conversation by id, or nil.
func (e *Engine) Get(conversationID uuid.UUID) *negotiation.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.store.Get(conversationID)
	if c == nil {
		return nil
	}
	return c.Clone()
}

// HasOpenWith reports whether a non-terminal conversation exists for
// the seller.
func (e *Engine) HasOpenWith(sellerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.FindOpenBySeller(sellerID) != nil
}

// MessagesOf returns the message history of a conversation.
func (e *Engine) MessagesOf(conversationID uuid.UUID) ([]negotiation.ChatMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.store.Get(conversationID)
	if c == nil {
		return nil, fmt.Errorf("conversation not found: %s", conversationID)
	}
	msgs := make([]negotiation.ChatMessage, len(c.History))
	copy(msgs, c.History)
	return msgs, nil
}

// ForceComplete manually completes a conversation, consuming a held
// image if one exists.
func (e *Engine) ForceComplete(ctx context.Context, conversationID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.store.Get(conversationID)
	if c == nil {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	if c.Terminal() {
		return negotiation.ErrAlreadyTerminal
	}
	data, _ := e.buffer.Take(conversationID)
	return e.complete(ctx, c, data)
}

// ForceFail manually fails a conversation.
func (e *Engine) ForceFail(ctx context.Context, conversationID uuid.UUID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.store.Get(conversationID)
	if c == nil {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	if c.Terminal() {
		return negotiation.ErrAlreadyTerminal
	}
	if reason == "" {
		reason = ReasonManual
	}
	return e.fail(ctx, c, reason)
}

// Shutdown cancels all outstanding timers.
func (e *Engine) Shutdown() {
	e.followUps.StopAll()
}

// say sends a message to the seller and records it in the history.
// Send failures are logged; local state never gets stuck on them.
func (e *Engine) say(ctx context.Context, c *negotiation.Conversation, text string) {
	if err := e.transport.Send(ctx, c.SellerID, text); err != nil {
		e.logger.Warn().Err(err).
			Str("conversation_id", c.ID.String()).
			Msg("send failed")
	}
	c.AppendMessage(negotiation.DirectionOutbound, text, false)
}

func (e *Engine) notifyOperator(ctx context.Context, text string) {
	if err := e.transport.NotifyOperator(ctx, text); err != nil {
		e.logger.Warn().Err(err).Msg("operator notification failed")
	}
}

func (e *Engine) persist(ctx context.Context, c *negotiation.Conversation) {
	if err := e.repo.Save(ctx, c); err != nil {
		e.logger.Error().Err(err).
			Str("conversation_id", c.ID.String()).
			Msg("conversation checkpoint failed")
	}
}

func (e *Engine) broadcast(event string, c *negotiation.Conversation) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(event, map[string]interface{}{
		"conversationId": c.ID.String(),
		"sellerId":       c.SellerID,
		"sellerName":     c.SellerName,
		"category":       c.Category,
		"state":          c.State,
		"updatedAt":      c.UpdatedAt.Format(time.RFC3339),
	})
}

func categoryLabel(c negotiation.Category) string {
	switch c {
	case negotiation.CategoryLunch:
		return "lunch"
	case negotiation.CategoryDinner:
		return "dinner"
	default:
		return string(c)
	}
}
