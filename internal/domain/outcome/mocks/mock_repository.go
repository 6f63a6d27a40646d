package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dealdesk/dealdesk/internal/domain/outcome"
)

// MockRepository is a mock implementation of outcome.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, r *outcome.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) GetByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*outcome.Record, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outcome.Record), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit, offset int) ([]*outcome.Record, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outcome.Record), args.Error(1)
}
