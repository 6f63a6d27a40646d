package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// scheduleFollowUp arms the recurring coupon reminder for a
// conversation in AWAITING_COUPON.
func (e *Engine) scheduleFollowUp(id uuid.UUID) {
	e.followUps.Schedule(id, e.cfg.FollowUpInterval, func() {
		e.followUpTick(id)
	})
}

// followUpTick runs one reminder cycle. The state guard is re-validated
// on every tick; a conversation that left AWAITING_COUPON stops the
// cycle silently. Reaching the ceiling alerts the operator once and
// releases the active slot without forcing a terminal state.
func (e *Engine) followUpTick(id uuid.UUID) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.store.Get(id)
	if c == nil || c.State != negotiation.StateAwaitingCoupon {
		return
	}

	if data, ok := e.buffer.Take(id); ok {
		_ = e.complete(ctx, c, data)
		return
	}

	if c.FollowUpCount >= e.cfg.FollowUpCeiling {
		e.notifyOperator(ctx, fmt.Sprintf(
			"Coupon not received from %s after %d attempts. Negotiation left open for manual action.",
			c.SellerName, c.FollowUpCount,
		))
		e.slot.Release(c.ID)
		e.broadcast("negotiation.stalled", c)
		return
	}

	e.say(ctx, c, followUpMessage(c.FollowUpCount))
	c.FollowUpCount++
	now := time.Now().UTC()
	c.FollowUpAt = &now
	e.persist(ctx, c)
	e.scheduleFollowUp(id)
}

func followUpMessage(count int) string {
	switch count {
	case 0:
		return "Could you send the coupon screenshot when you get a chance?"
	case 1:
		return "Just a gentle reminder about the coupon screenshot!"
	default:
		return "Hey, I've already sent the payment. Could you please share the coupon screenshot?"
	}
}
