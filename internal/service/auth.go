package service

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/domain/access"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/session"
	"github.com/rise-and-shine/filevault/pkg/hasher"
	"github.com/rise-and-shine/filevault/pkg/logger"
)

// AuthService manages user registration and token-based sessions.
type AuthService struct {
	repo     metadata.Repository
	sessions session.Store
	tokenTTL time.Duration
	log      logger.Logger
}

// NewAuthService creates the auth use cases.
func NewAuthService(repo metadata.Repository, sessions session.Store, tokenTTL time.Duration, log logger.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		sessions: sessions,
		tokenTTL: tokenTTL,
		log:      log.Named("service.auth"),
	}
}

// Register creates a new user with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" {
		return nil, errValidation("Missing email", CodeMissingEmail)
	}
	if password == "" {
		return nil, errValidation("Missing password", CodeMissingPassword)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, errx.Wrap(err)
	}

	s.log.WithContext(ctx).With("user_id", user.ID).Info("user registered")
	return user, nil
}

// Connect verifies Basic credentials and opens a session, returning its token.
// Wrong email and wrong password are indistinguishable to the caller.
func (s *AuthService) Connect(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrUnauthorized()
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			return "", ErrUnauthorized()
		}
		return "", errx.Wrap(err)
	}

	if !hasher.Compare(password, user.PasswordHash) {
		return "", ErrUnauthorized()
	}

	token, err := s.sessions.Create(ctx, user.ID, s.tokenTTL)
	if err != nil {
		return "", errx.Wrap(err)
	}

	s.log.WithContext(ctx).With("user_id", user.ID).Info("session opened")
	return token, nil
}

// Disconnect closes the session behind the token.
func (s *AuthService) Disconnect(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized()
	}
	return errx.Wrap(s.sessions.Destroy(ctx, token))
}

// CallerFromToken resolves a token to an authenticated caller.
// An empty or unknown token yields an authentication error.
func (s *AuthService) CallerFromToken(ctx context.Context, token string) (access.Caller, error) {
	if token == "" {
		return access.Anonymous(), ErrUnauthorized()
	}

	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return access.Anonymous(), errx.Wrap(err)
	}
	return access.User(userID), nil
}

// Me returns the user behind an authenticated caller.
func (s *AuthService) Me(ctx context.Context, caller access.Caller) (*model.User, error) {
	userID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthorized()
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			// Session outlived the user record.
			return nil, ErrUnauthorized()
		}
		return nil, errx.Wrap(err)
	}
	return user, nil
}
