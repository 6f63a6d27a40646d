package outcome

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for outcome persistence
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*Record, error)
	List(ctx context.Context, limit, offset int) ([]*Record, error)
}
