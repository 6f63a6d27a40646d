package engine

import (
	"context"
	"fmt"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// maybeHandleWithdrawal runs the cancellation sub-protocol when the
// seller signals withdrawal above the confidence threshold. A renewed
// agreement (or a coupon assertion) mid-protocol clears the escalation
// counter and hands the message back to normal-state handling.
func (e *Engine) maybeHandleWithdrawal(ctx context.Context, c *negotiation.Conversation, text string) bool {
	sig, err := e.nlu.DetectWithdrawal(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("withdrawal detection failed")
		return false
	}
	if sig.Flag && sig.Confidence >= e.cfg.WithdrawalThreshold {
		e.escalateCancellation(ctx, c)
		return true
	}
	if c.CancelCount > 0 {
		cls, err := e.nlu.ClassifyReply(ctx, text)
		if err == nil && ((cls.Agreement != nil && *cls.Agreement) || cls.HasCoupon) {
			c.CancelCount = 0
		}
	}
	return false
}

// escalateCancellation steps the acknowledge / persuade / accept
// ladder, bounded by the configured ceiling. Acceptance forks on
// whether the payment was already made.
func (e *Engine) escalateCancellation(ctx context.Context, c *negotiation.Conversation) {
	if c.CancelCount >= e.cfg.CancelCeiling {
		e.acceptCancellation(ctx, c)
		return
	}
	if c.CancelCount == 0 {
		e.say(ctx, c, "Oh no, what happened? Is something wrong?")
	} else {
		e.say(ctx, c, fmt.Sprintf("I was really counting on this one, and %d is a fair price. Are you sure you can't do it?", c.TargetPrice))
	}
	c.CancelCount++
}

func (e *Engine) acceptCancellation(ctx context.Context, c *negotiation.Conversation) {
	paid := c.State == negotiation.StateAwaitingCoupon
	if !paid {
		e.say(ctx, c, "Alright, I understand. Maybe next time, thanks anyway!")
		c.CancelCount = 0
		_ = e.fail(ctx, c, ReasonSellerCancelled)
		return
	}

	e.say(ctx, c, fmt.Sprintf("Okay, but I already sent you %d. Could you please refund it to the same account?", c.TargetPrice))
	c.CancelCount = 0
	c.RefundRequested = true
	if err := c.TransitionTo(negotiation.StateAwaitingRefund); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("transition failed")
		return
	}
	e.followUps.Stop(c.ID)
	e.notifyOperator(ctx, fmt.Sprintf(
		"%s cancelled after payment. Refund of %d requested, watching for confirmation.",
		c.SellerName, c.TargetPrice,
	))
	e.broadcast("negotiation.refund_requested", c)
}

// handleAwaitingRefund waits for the seller to assert the refund was
// sent, then asks for proof.
func (e *Engine) handleAwaitingRefund(ctx context.Context, c *negotiation.Conversation, text string) {
	sig, err := e.nlu.DetectRefundConfirmation(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("refund detection failed")
		return
	}
	if !sig.Flag || sig.Confidence < e.cfg.WithdrawalThreshold {
		e.say(ctx, c, "Please let me know once you've sent the refund.")
		return
	}
	if err := c.TransitionTo(negotiation.StateAwaitingRefundScreenshot); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("transition failed")
		return
	}
	e.say(ctx, c, "Thanks! Could you send a screenshot of the refund?")
}

// handleAwaitingRefundScreenshot re-requests proof when the seller
// confirms again without attaching it. The attachment path finishes
// the refund.
func (e *Engine) handleAwaitingRefundScreenshot(ctx context.Context, c *negotiation.Conversation, text string) {
	sig, err := e.nlu.DetectRefundConfirmation(ctx, text)
	if err == nil && sig.Flag {
		e.say(ctx, c, "Could you send the refund screenshot so I can verify it on my side?")
	}
}

// finishRefund closes the refund sub-flow after proof arrived.
func (e *Engine) finishRefund(ctx context.Context, c *negotiation.Conversation) {
	c.RefundReceived = true
	c.RefundProofReceived = true
	e.say(ctx, c, "Received, thank you for sorting that out!")
	e.notifyOperator(ctx, fmt.Sprintf("Refund of %d received from %s, screenshot attached in chat.", c.TargetPrice, c.SellerName))
	_ = e.fail(ctx, c, ReasonRefundReceived)
}
