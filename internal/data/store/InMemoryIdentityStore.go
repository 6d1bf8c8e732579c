package store

import (
	"context"
	"sync"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

type InMemoryIdentityStore struct {
	mu          *sync.RWMutex
	users       map[string]commonModels.User
	memberships []commonModels.GroupMembership
}

func InitInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{
		mu:    new(sync.RWMutex),
		users: make(map[string]commonModels.User),
	}
}

func (s *InMemoryIdentityStore) SaveUser(user commonModels.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Id] = user
}

func (s *InMemoryIdentityStore) AddMembership(groupId, userId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, commonModels.GroupMembership{GroupId: groupId, UserId: userId})
}

func (s *InMemoryIdentityStore) GetUser(ctx context.Context, tenantId string, userId string) (commonModels.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, found := s.users[userId]
	if !found || user.TenantId != tenantId {
		return commonModels.User{}, false, nil
	}
	return user, true, nil
}

func (s *InMemoryIdentityStore) GroupIdsForUser(ctx context.Context, userId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groupIds []string
	for _, m := range s.memberships {
		if m.UserId == userId {
			groupIds = append(groupIds, m.GroupId)
		}
	}
	return groupIds, nil
}
