package negotiation

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
)

// Repository checkpoints conversations to durable storage. The
// in-memory Store stays authoritative; the engine saves after every
// mutation and loads open conversations at startup.
type Repository interface {
	Save(ctx context.Context, c *Conversation) error
	ListOpen(ctx context.Context) ([]*Conversation, error)
}
