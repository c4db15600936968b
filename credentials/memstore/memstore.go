package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/users"
)

var _ credentials.Store = (*MemStore)(nil)

// MemStore keeps credentials for the lifetime of the process only.
type MemStore struct {
	accessToken  string
	refreshToken string
	user         *users.User
	lock         sync.RWMutex
}

func New() *MemStore {
	return &MemStore{}
}

func (ms *MemStore) GetAccessToken(_ context.Context) (string, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.accessToken, nil
}

func (ms *MemStore) SetAccessToken(_ context.Context, token string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.accessToken = token
	return nil
}

func (ms *MemStore) GetRefreshToken(_ context.Context) (string, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.refreshToken, nil
}

func (ms *MemStore) SetRefreshToken(_ context.Context, token string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.refreshToken = token
	return nil
}

func (ms *MemStore) GetUser(_ context.Context) (*users.User, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.user.Clone(), nil
}

func (ms *MemStore) SetUser(_ context.Context, user *users.User) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.user = user.Clone()
	return nil
}

func (ms *MemStore) ClearAll(_ context.Context) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.accessToken = ""
	ms.refreshToken = ""
	ms.user = nil
	return nil
}
