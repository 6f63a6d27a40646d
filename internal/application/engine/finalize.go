package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
	"github.com/dealdesk/dealdesk/internal/domain/outcome"
)

// complete finalizes a successful negotiation. Calling it on a
// terminal conversation is a guarded no-op reported as an error.
func (e *Engine) complete(ctx context.Context, c *negotiation.Conversation, data []byte) error {
	if c.Terminal() {
		return negotiation.ErrAlreadyTerminal
	}
	if err := c.MarkCompleted(); err != nil {
		return err
	}

	e.slot.Release(c.ID)
	e.checkpoints.CancelAll(c.ID)
	e.followUps.Stop(c.ID)
	e.buffer.Clear(c.ID)
	c.CancelCount = 0

	e.say(ctx, c, "Got it, thank you so much! Pleasure doing business with you.")

	rec := outcome.NewRecord(c, outcome.ResultPurchased)
	price := c.TargetPrice
	rec.PricePaid = &price

	if len(data) > 0 {
		ref, err := e.attachments.SaveCoupon(ctx, c.Category, data, c.SellerName)
		if err != nil {
			e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("coupon save failed")
		} else {
			rec.CouponRef = &ref
		}
		if err := e.transport.NotifyOperatorAttachment(ctx, data, e.summarize(c)); err != nil {
			e.logger.Warn().Err(err).Msg("operator attachment forward failed")
		}
	} else {
		e.notifyOperator(ctx, e.summarize(c))
	}

	if err := e.outcomes.Create(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("outcome record failed")
	}
	e.oracle.MarkFulfilled(c.Category, c.ID)
	e.persist(ctx, c)
	e.broadcast("negotiation.completed", c)
	e.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("seller_id", c.SellerID).
		Msg("negotiation completed")
	return nil
}

// fail finalizes a negotiation with a reason. Same idempotence guard
// as complete.
func (e *Engine) fail(ctx context.Context, c *negotiation.Conversation, reason string) error {
	if c.Terminal() {
		return negotiation.ErrAlreadyTerminal
	}
	if err := c.MarkFailed(reason); err != nil {
		return err
	}

	e.slot.Release(c.ID)
	e.checkpoints.CancelAll(c.ID)
	e.followUps.Stop(c.ID)
	e.buffer.Clear(c.ID)
	c.CancelCount = 0

	rec := outcome.NewRecord(c, outcome.ResultFailed)
	if err := e.outcomes.Create(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("outcome record failed")
	}
	e.notifyOperator(ctx, e.summarize(c))
	e.oracle.MarkFailed(c.ID, reason)
	e.persist(ctx, c)
	e.broadcast("negotiation.failed", c)
	e.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("seller_id", c.SellerID).
		Str("reason", reason).
		Msg("negotiation failed")
	return nil
}

// summarize formats the single structured operator message every
// terminal transition produces.
func (e *Engine) summarize(c *negotiation.Conversation) string {
	var b strings.Builder
	if c.State == negotiation.StateCompleted {
		b.WriteString("Purchased: ")
	} else {
		b.WriteString("Not purchased: ")
	}
	fmt.Fprintf(&b, "%s coupon from %s", categoryLabel(c.Category), c.SellerName)
	if c.Mess != nil {
		fmt.Fprintf(&b, " (%s)", *c.Mess)
	}
	fmt.Fprintf(&b, ", started %s", c.CreatedAt.Format(time.RFC3339))
	if c.CompletedAt != nil {
		fmt.Fprintf(&b, ", ended %s", c.CompletedAt.Format(time.RFC3339))
	}
	if c.FailureReason != nil {
		fmt.Fprintf(&b, ". Reason: %s", *c.FailureReason)
	}
	if c.RefundRequested {
		fmt.Fprintf(&b, ". Refund requested, received=%t", c.RefundReceived)
	}
	return b.String()
}
