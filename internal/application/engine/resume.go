package engine

import (
	"context"
	"sort"
	"time"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// ResumeAll recovers persisted open conversations at startup. Stale
// ones (inactive beyond the ceiling, seller not exempt) fail silently
// with no message to the seller. Of the rest, only the most recently
// updated becomes active; older ones are failed as superseded so the
// singleton invariant holds across the resumed batch.
func (e *Engine) ResumeAll(ctx context.Context) error {
	convs, err := e.repo.ListOpen(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	var live []*negotiation.Conversation
	for _, c := range convs {
		e.store.Put(c)
		if now.Sub(c.UpdatedAt) > e.cfg.InactivityCeiling && !e.oracle.IsExempt(c.SellerID) {
			_ = e.fail(ctx, c, ReasonInactivityTimeout)
			continue
		}
		live = append(live, c)
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].UpdatedAt.After(live[j].UpdatedAt)
	})
	for i, c := range live {
		if i == 0 {
			e.resumeOne(ctx, c)
			continue
		}
		_ = e.fail(ctx, c, ReasonSuperseded)
	}
	return nil
}

// resumeOne re-activates a conversation and re-issues the prompt its
// persisted state calls for.
func (e *Engine) resumeOne(ctx context.Context, c *negotiation.Conversation) {
	if !e.slot.Claim(c.ID) {
		e.logger.Error().
			Str("conversation_id", c.ID.String()).
			Msg("active slot unexpectedly occupied during resume")
		return
	}

	switch c.State {
	case negotiation.StateInitiatingContact:
		e.say(ctx, c, "Hi again! Sorry for the pause. Is the coupon still available?")
	case negotiation.StateAwaitingMessInfo:
		e.say(ctx, c, "Sorry for the pause! Which mess is the coupon from?")
	case negotiation.StateAwaitingPaymentInfo:
		e.say(ctx, c, "Sorry for the pause! Could you share your UPI ID so I can pay?")
	case negotiation.StatePaymentPending:
		if c.PaymentID != nil {
			e.beginPurchaseCheckpoint(ctx, c)
		} else {
			e.say(ctx, c, "Sorry for the pause! Could you share your UPI ID again?")
		}
	case negotiation.StateAwaitingCoupon:
		e.say(ctx, c, "Hi again! Could you send the coupon screenshot when you get a chance?")
		e.scheduleFollowUp(c.ID)
	case negotiation.StateAwaitingRefund:
		e.say(ctx, c, "Hi! Just checking in on the refund, any update?")
	case negotiation.StateAwaitingRefundScreenshot:
		e.say(ctx, c, "Hi! Could you send the refund screenshot when you get a chance?")
	}
	e.persist(ctx, c)
	e.broadcast("negotiation.resumed", c)
	e.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("state", string(c.State)).
		Msg("negotiation resumed")
}
