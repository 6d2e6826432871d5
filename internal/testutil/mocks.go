package testutil

import (
	"context"

	"github.com/dgellow/resumescan/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of storage.Store, for injecting read/write failures
type MockStore struct {
	mock.Mock
}

var _ storage.Store = (*MockStore)(nil)

func (m *MockStore) Get(ctx context.Context, key storage.Key) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key storage.Key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, key storage.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
