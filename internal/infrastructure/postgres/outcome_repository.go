package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealdesk/dealdesk/internal/domain/outcome"
)

// OutcomeRepository implements outcome.Repository.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

func (r *OutcomeRepository) Create(ctx context.Context, rec *outcome.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outcomes (
			record_id, conversation_id, seller_id, seller_name, category, mess,
			result, reason, price_paid, coupon_ref, refund_requested, refund_received, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.RecordID, rec.ConversationID, rec.SellerID, rec.SellerName, rec.Category, rec.Mess,
		rec.Result, rec.Reason, rec.PricePaid, rec.CouponRef, rec.RefundRequested, rec.RefundReceived, rec.CreatedAt)
	return err
}

func (r *OutcomeRepository) GetByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*outcome.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, conversation_id, seller_id, seller_name, category, mess,
			result, reason, price_paid, coupon_ref, refund_requested, refund_received, created_at
		FROM outcomes WHERE conversation_id=$1 ORDER BY created_at DESC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (r *OutcomeRepository) List(ctx context.Context, limit, offset int) ([]*outcome.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, conversation_id, seller_id, seller_name, category, mess,
			result, reason, price_paid, coupon_ref, refund_requested, refund_received, created_at
		FROM outcomes ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]*outcome.Record, error) {
	var out []*outcome.Record
	for rows.Next() {
		var rec outcome.Record
		if err := rows.Scan(
			&rec.ID, &rec.RecordID, &rec.ConversationID, &rec.SellerID, &rec.SellerName,
			&rec.Category, &rec.Mess, &rec.Result, &rec.Reason, &rec.PricePaid,
			&rec.CouponRef, &rec.RefundRequested, &rec.RefundReceived, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
