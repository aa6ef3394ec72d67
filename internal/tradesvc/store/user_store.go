package store

import (
	"fmt"
	"sync"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
)

// UserStore holds the credential records backing login. Loaded once at
// startup from a JSON file.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
	path  string
}

func NewUserStore(path string) (*UserStore, error) {
	s := &UserStore{
		users: make(map[string]models.User),
		path:  path,
	}

	var records []models.User
	if err := readSnapshot(path, &records); err != nil {
		return nil, fmt.Errorf("load user store: %w", err)
	}
	for _, u := range records {
		s.users[u.Username] = u
	}
	return s, nil
}

func (s *UserStore) GetByUsername(username string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, false
	}
	return &u, true
}
