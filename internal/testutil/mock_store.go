package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// MockLinkStore is a testify mock of the link persistence methods
type MockLinkStore struct {
	mock.Mock
}

func (m *MockLinkStore) FindLink(ctx context.Context, userID, redditName string) (*models.Link, error) {
	args := m.Called(ctx, userID, redditName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkStore) InsertLink(ctx context.Context, link *models.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockLinkStore) ListLinksByUser(ctx context.Context, userID string) ([]*models.Link, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Link), args.Error(1)
}

func (m *MockLinkStore) DeleteLink(ctx context.Context, userID, redditName string) error {
	args := m.Called(ctx, userID, redditName)
	return args.Error(0)
}
