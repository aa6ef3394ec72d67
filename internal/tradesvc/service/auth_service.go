package service

import (
	"github.com/cardex/cardex-services/internal/tradesvc/store"
)

// AuthService performs the credential check backing login. The check is
// a plain equality lookup against the user store.
type AuthService struct {
	users *store.UserStore
}

func NewAuthService(users *store.UserStore) *AuthService {
	return &AuthService{users: users}
}

// Authenticate reports whether the username/password pair matches a
// stored credential record.
func (s *AuthService) Authenticate(username, password string) bool {
	user, ok := s.users.GetByUsername(username)
	if !ok {
		return false
	}
	return user.Password == password
}
