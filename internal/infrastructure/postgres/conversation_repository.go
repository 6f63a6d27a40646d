package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// ConversationRepository implements negotiation.Repository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Save upserts a conversation checkpoint.
func (r *ConversationRepository) Save(ctx context.Context, c *negotiation.Conversation) error {
	history, err := json.Marshal(c.History)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO conversations (
			conversation_id, seller_id, seller_name, category, target_price,
			payment_id, mess, origin_channel_id, origin_channel_name, origin_message_id,
			state, follow_up_count, cancel_count, failure_reason,
			refund_requested, refund_received, refund_proof_received,
			history, created_at, updated_at, follow_up_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (conversation_id) DO UPDATE SET
			payment_id=EXCLUDED.payment_id,
			mess=EXCLUDED.mess,
			state=EXCLUDED.state,
			follow_up_count=EXCLUDED.follow_up_count,
			cancel_count=EXCLUDED.cancel_count,
			failure_reason=EXCLUDED.failure_reason,
			refund_requested=EXCLUDED.refund_requested,
			refund_received=EXCLUDED.refund_received,
			refund_proof_received=EXCLUDED.refund_proof_received,
			history=EXCLUDED.history,
			updated_at=EXCLUDED.updated_at,
			follow_up_at=EXCLUDED.follow_up_at,
			completed_at=EXCLUDED.completed_at
	`, c.ID, c.SellerID, c.SellerName, c.Category, c.TargetPrice,
		c.PaymentID, c.Mess, c.OriginChannelID, c.OriginChannelName, c.OriginMessageID,
		c.State, c.FollowUpCount, c.CancelCount, c.FailureReason,
		c.RefundRequested, c.RefundReceived, c.RefundProofReceived,
		history, c.CreatedAt, c.UpdatedAt, c.FollowUpAt, c.CompletedAt)
	return err
}

// ListOpen returns every non-terminal conversation.
func (r *ConversationRepository) ListOpen(ctx context.Context) ([]*negotiation.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, seller_id, seller_name, category, target_price,
			payment_id, mess, origin_channel_id, origin_channel_name, origin_message_id,
			state, follow_up_count, cancel_count, failure_reason,
			refund_requested, refund_received, refund_proof_received,
			history, created_at, updated_at, follow_up_at, completed_at
		FROM conversations
		WHERE state NOT IN ($1, $2)
		ORDER BY updated_at DESC
	`, negotiation.StateCompleted, negotiation.StateFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*negotiation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*negotiation.Conversation, error) {
	var c negotiation.Conversation
	var history json.RawMessage
	if err := row.Scan(
		&c.ID, &c.SellerID, &c.SellerName, &c.Category, &c.TargetPrice,
		&c.PaymentID, &c.Mess, &c.OriginChannelID, &c.OriginChannelName, &c.OriginMessageID,
		&c.State, &c.FollowUpCount, &c.CancelCount, &c.FailureReason,
		&c.RefundRequested, &c.RefundReceived, &c.RefundProofReceived,
		&history, &c.CreatedAt, &c.UpdatedAt, &c.FollowUpAt, &c.CompletedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.History); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
