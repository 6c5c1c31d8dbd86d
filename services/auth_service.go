package services

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
	"whirl/auth"
	"whirl/domain"
	"whirl/errors"
	"whirl/repositories"
)

// AuthService is the credential store backing LOGIN, REGISTER and the
// HTTP session endpoints.
type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

// Register creates an account. Rules are checked before any hashing.
func (s *AuthService) Register(username, password string) (domain.Identity, error) {
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return domain.Identity{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists when the name is taken
	userID, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: userID, Username: username}, nil
}

// Authenticate checks a username and password pair. Unknown users and wrong
// passwords fail the same way.
func (s *AuthService) Authenticate(username, password string) (domain.Identity, error) {
	user, err := s.userRepository.GetUser(username)
	switch {
	case stderrors.Is(err, errors.ErrUserNotFound):
		return domain.Identity{}, errors.ErrWrongCredentials
	case err != nil:
		return domain.Identity{}, err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil {
		s.log.Warn("Stored password hash unreadable", "user", username, "error", err)
		return domain.Identity{}, errors.ErrWrongCredentials
	}
	if !match {
		return domain.Identity{}, errors.ErrWrongCredentials
	}
	return domain.Identity{ID: user.ID, Username: user.Username}, nil
}

// CurrentUser resolves a session token to the account it was issued for.
// A token outliving its account is refused.
func (s *AuthService) CurrentUser(sessionToken string) (domain.Identity, error) {
	if sessionToken == "" {
		return domain.Identity{}, errors.ErrInvalidToken
	}
	claims, err := s.tokens.Validate(sessionToken)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := s.userRepository.GetUser(claims.Username)
	if err != nil || user.ID != claims.UserID {
		return domain.Identity{}, errors.ErrInvalidToken
	}
	return domain.Identity{ID: user.ID, Username: user.Username}, nil
}

// Login authenticates and issues a session token for the HTTP endpoint.
func (s *AuthService) Login(username, password string) (string, domain.Identity, error) {
	identity, err := s.Authenticate(username, password)
	if err != nil {
		return "", domain.Identity{}, err
	}
	token, err := s.tokens.Generate(identity.ID, identity.Username)
	if err != nil {
		return "", domain.Identity{}, err
	}
	return token, identity, nil
}

// SessionDuration is the lifetime of tokens issued by Login.
func (s *AuthService) SessionDuration() time.Duration {
	return s.tokens.Duration()
}
