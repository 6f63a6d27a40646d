package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// routeText dispatches a seller text message to the handler for the
// conversation's current state.
func (e *Engine) routeText(ctx context.Context, c *negotiation.Conversation, text string) {
	switch c.State {
	case negotiation.StateAwaitingRefund:
		e.handleAwaitingRefund(ctx, c, text)
		return
	case negotiation.StateAwaitingRefundScreenshot:
		e.handleAwaitingRefundScreenshot(ctx, c, text)
		return
	case negotiation.StateCompleted, negotiation.StateFailed:
		e.logger.Debug().
			Str("conversation_id", c.ID.String()).
			Msg("message after terminal state; ignored")
		return
	}

	if e.maybeHandleWithdrawal(ctx, c, text) {
		return
	}

	cls, err := e.nlu.ClassifyReply(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("conversation_id", c.ID.String()).
			Msg("reply classification failed")
		return
	}
	if cls.WaitRequested {
		e.say(ctx, c, "No problem, take your time!")
		return
	}

	switch c.State {
	case negotiation.StateInitiatingContact:
		e.handleInitiatingContact(ctx, c, cls)
	case negotiation.StateAwaitingMessInfo:
		e.handleAwaitingMessInfo(ctx, c, text, cls)
	case negotiation.StateAwaitingPaymentInfo:
		e.handleAwaitingPaymentInfo(ctx, c, cls)
	case negotiation.StatePaymentPending:
		e.handlePaymentPending(ctx, c, cls)
	case negotiation.StateAwaitingCoupon:
		e.handleAwaitingCoupon(ctx, c, cls)
	}
}

// applyCommonSignals handles explicit declines and over-target prices.
// Returns true when the conversation reached a terminal state.
func (e *Engine) applyCommonSignals(ctx context.Context, c *negotiation.Conversation, cls ReplyClassification) bool {
	if cls.Available != nil && !*cls.Available {
		e.say(ctx, c, "Alright, no worries. Thanks for letting me know!")
		_ = e.fail(ctx, c, ReasonOfferWithdrawn)
		return true
	}
	if cls.Price != nil && *cls.Price > c.TargetPrice {
		e.say(ctx, c, fmt.Sprintf("Sorry, %d is more than I can pay. I'll have to pass, thanks anyway!", *cls.Price))
		_ = e.fail(ctx, c, ReasonPriceExceeded)
		return true
	}
	return false
}

func (e *Engine) handleInitiatingContact(ctx context.Context, c *negotiation.Conversation, cls ReplyClassification) {
	if e.applyCommonSignals(ctx, c, cls) {
		return
	}
	if cls.NeedsClarification {
		e.say(ctx, c, cls.Clarification)
		return
	}

	available := cls.Available != nil && *cls.Available
	agreed := cls.Agreement != nil && *cls.Agreement
	if !available && !agreed && cls.PaymentID == nil {
		e.say(ctx, c, "Just checking in, is the coupon still available?")
		return
	}

	if err := c.TransitionTo(negotiation.StateAwaitingPaymentInfo); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("transition failed")
		return
	}
	if cls.PaymentID != nil {
		e.learnPayment(ctx, c, *cls.PaymentID)
		return
	}
	e.say(ctx, c, fmt.Sprintf("Great! I can pay %d. Could you share your UPI ID?", c.TargetPrice))
}

func (e *Engine) handleAwaitingMessInfo(ctx context.Context, c *negotiation.Conversation, text string, cls ReplyClassification) {
	if e.applyCommonSignals(ctx, c, cls) {
		return
	}
	if cls.NeedsClarification {
		e.say(ctx, c, cls.Clarification)
		return
	}

	mess, err := e.nlu.ExtractMess(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("mess extraction failed")
		return
	}
	if mess == "" {
		e.say(ctx, c, "Sorry, which mess is the coupon from?")
		return
	}

	if accepted := e.oracle.AcceptedMesses(c.Category); len(accepted) > 0 && !containsFold(accepted, mess) {
		e.say(ctx, c, fmt.Sprintf("Ah, I'm only looking for coupons from %s. Sorry about that!", strings.Join(accepted, " or ")))
		_ = e.fail(ctx, c, ReasonCategoryMismatch)
		return
	}

	c.SetMess(mess)
	if err := c.TransitionTo(negotiation.StateAwaitingPaymentInfo); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("transition failed")
		return
	}
	if cls.PaymentID != nil {
		e.learnPayment(ctx, c, *cls.PaymentID)
		return
	}
	e.say(ctx, c, fmt.Sprintf("Perfect, that works. I can pay %d. Could you share your UPI ID?", c.TargetPrice))
}

func (e *Engine) handleAwaitingPaymentInfo(ctx context.Context, c *negotiation.Conversation, cls ReplyClassification) {
	if e.applyCommonSignals(ctx, c, cls) {
		return
	}
	if cls.NeedsClarification {
		e.say(ctx, c, cls.Clarification)
		return
	}
	if cls.PaymentID != nil {
		e.learnPayment(ctx, c, *cls.PaymentID)
		return
	}
	e.say(ctx, c, "Could you share your UPI ID so I can send the payment?")
}

// handlePaymentPending covers seller chatter while a checkpoint is
// outstanding. A late payment id (possible after resumption) re-enters
// the purchase checkpoint.
func (e *Engine) handlePaymentPending(ctx context.Context, c *negotiation.Conversation, cls ReplyClassification) {
	if e.applyCommonSignals(ctx, c, cls) {
		return
	}
	if c.PaymentID == nil && cls.PaymentID != nil {
		c.SetPaymentID(*cls.PaymentID)
		e.beginPurchaseCheckpoint(ctx, c)
		return
	}
	if cls.NeedsClarification {
		e.say(ctx, c, cls.Clarification)
		return
	}
	e.say(ctx, c, "One moment, just confirming the payment on my side.")
}

func (e *Engine) handleAwaitingCoupon(ctx context.Context, c *negotiation.Conversation, cls ReplyClassification) {
	if e.applyCommonSignals(ctx, c, cls) {
		return
	}
	if cls.HasCoupon {
		if data, ok := e.buffer.Take(c.ID); ok {
			_ = e.complete(ctx, c, data)
			return
		}
		// The seller says it was sent but no image reached us; pull
		// their recent attachments from the relay as a fallback.
		imgs, err := e.transport.FetchRecentAttachments(ctx, c.SellerID, 5, c.CreatedAt)
		if err != nil {
			e.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("attachment fetch failed")
		}
		if len(imgs) > 0 {
			_ = e.complete(ctx, c, imgs[0])
			return
		}
		e.say(ctx, c, "Hmm, I don't see it yet. Could you resend the screenshot?")
		return
	}
	if cls.NeedsClarification {
		e.say(ctx, c, cls.Clarification)
		return
	}
	e.say(ctx, c, "Whenever you're ready, please send the coupon screenshot.")
}

// learnPayment records the payment identifier and gates the purchase
// behind checkpoint 1.
func (e *Engine) learnPayment(ctx context.Context, c *negotiation.Conversation, paymentID string) {
	c.SetPaymentID(paymentID)
	if err := c.TransitionTo(negotiation.StatePaymentPending); err != nil {
		e.logger.Error().Err(err).Str("conversation_id", c.ID.String()).Msg("transition failed")
		return
	}
	e.say(ctx, c, "Got it, let me just set up the payment. One minute!")
	e.beginPurchaseCheckpoint(ctx, c)
}

// handleAttachment routes an inbound image by the conversation state:
// consumed immediately where the state expects one, held for
// reconciliation otherwise.
func (e *Engine) handleAttachment(ctx context.Context, c *negotiation.Conversation, data []byte) {
	switch c.State {
	case negotiation.StateAwaitingCoupon:
		_ = e.complete(ctx, c, data)
	case negotiation.StateAwaitingRefundScreenshot:
		e.finishRefund(ctx, c)
	case negotiation.StateCompleted, negotiation.StateFailed:
		e.logger.Debug().Str("conversation_id", c.ID.String()).Msg("attachment after terminal state; ignored")
	default:
		e.buffer.Hold(c.ID, data)
		e.logger.Info().
			Str("conversation_id", c.ID.String()).
			Str("state", string(c.State)).
			Msg("attachment held for reconciliation")
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
