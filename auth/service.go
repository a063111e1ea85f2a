package auth

import (
	"context"
	"errors"
	"strings"

	almalead "github.com/phbpx/almalead"
	"go.uber.org/zap"
)

// dummyHash is compared against when the email is unknown, so both failure
// paths cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3oHhF0hS.kY5gPzVvVxjRVa"

type Service struct {
	users almalead.UserRepository
	guard *Guard
	log   *zap.SugaredLogger
}

func NewService(users almalead.UserRepository, guard *Guard, log *zap.SugaredLogger) *Service {
	return &Service{
		users: users,
		guard: guard,
		log:   log,
	}
}

// Login checks the credentials and returns a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, almalead.ErrUserNotFound) {
			return Token{}, err
		}
		CheckPassword(dummyHash, password)
		s.log.Infow("login", "status", "unknown email")
		return Token{}, almalead.ErrUnauthorized
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.log.Infow("login", "status", "password mismatch", "user_id", user.ID)
		return Token{}, almalead.ErrUnauthorized
	}

	return s.guard.Issue(user)
}

func (s *Service) Verify(token string) (Identity, error) {
	return s.guard.Verify(token)
}
