package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// beginPurchaseCheckpoint arms checkpoint 1: the operator must approve
// the purchase. An escalation timer requests an out-of-band alert
// strictly before the decision timeout resolves the checkpoint false.
func (e *Engine) beginPurchaseCheckpoint(ctx context.Context, c *negotiation.Conversation) {
	id := c.ID
	e.notifyOperator(ctx, fmt.Sprintf(
		"Purchase approval needed: %s coupon from %s at %d, pay to %s. Approve or decline.",
		categoryLabel(c.Category), c.SellerName, c.TargetPrice, stringOr(c.PaymentID, "unknown"),
	))
	err := e.checkpoints.Register(
		id,
		CheckpointPurchase,
		e.cfg.PurchaseDecisionTimeout,
		e.cfg.PurchaseEscalationAfter,
		func() {
			if err := e.transport.RequestOutOfBandAlert(context.Background(), e.cfg.OperatorID); err != nil {
				e.logger.Warn().Err(err).Msg("out-of-band alert failed")
			}
		},
		func(value, timedOut bool) {
			e.onPurchaseDecision(id, value, timedOut)
		},
	)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", id.String()).Msg("purchase checkpoint already pending")
	}
	e.broadcast("checkpoint.purchase", c)
}

func (e *Engine) onPurchaseDecision(id uuid.UUID, value, timedOut bool) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.store.Get(id)
	if c == nil || c.State != negotiation.StatePaymentPending {
		return
	}

	if !value {
		reason := ReasonOperatorDeclined
		if timedOut {
			reason = ReasonOperatorTimeout
		}
		e.say(ctx, c, "So sorry, I have to back out of this one. Apologies for the trouble!")
		_ = e.fail(ctx, c, reason)
		return
	}

	e.say(ctx, c, "All set, sending the payment now!")
	e.beginPaymentCheckpoint(ctx, c)
	e.persist(ctx, c)
}

// beginPaymentCheckpoint arms checkpoint 2: the operator asserts the
// payment was actually made. Longer timeout, no escalation.
func (e *Engine) beginPaymentCheckpoint(ctx context.Context, c *negotiation.Conversation) {
	id := c.ID
	e.notifyOperator(ctx, fmt.Sprintf(
		"Pay %d to %s for the %s coupon from %s, then confirm the payment.",
		c.TargetPrice, stringOr(c.PaymentID, "unknown"), categoryLabel(c.Category), c.SellerName,
	))
	err := e.checkpoints.Register(
		id,
		CheckpointPayment,
		e.cfg.PaymentDecisionTimeout,
		0,
		nil,
		func(value, timedOut bool) {
			e.onPaymentDecision(id, value, timedOut)
		},
	)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", id.String()).Msg("payment checkpoint already pending")
	}
	e.broadcast("checkpoint.payment", c)
}

func (e *Engine) onPaymentDecision(id uuid.UUID, value, timedOut bool) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.store.Get(id)
	if c == nil || c.State != negotiation.StatePaymentPending {
		return
	}

	if !value {
		e.say(ctx, c, "So sorry, I couldn't complete the payment. I'll have to cancel, apologies!")
		_ = e.fail(ctx, c, ReasonPaymentNotConfirmed)
		return
	}

	// A coupon may already be waiting in the reconciliation buffer:
	// sellers sometimes send it unprompted during the payment wait.
	if data, ok := e.buffer.Take(id); ok {
		_ = e.complete(ctx, c, data)
		return
	}

	e.say(ctx, c, fmt.Sprintf("Payment of %d sent to %s! Please share the coupon screenshot.", c.TargetPrice, stringOr(c.PaymentID, "you")))
	if err := c.TransitionTo(negotiation.StateAwaitingCoupon); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", id.String()).Msg("transition failed")
		return
	}
	e.scheduleFollowUp(c.ID)
	e.persist(ctx, c)
	e.broadcast("negotiation.awaiting_coupon", c)
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
