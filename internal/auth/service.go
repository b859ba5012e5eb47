package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown usernames and wrong
// passwords alike, so login failures do not leak which accounts exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// operatorRepo is the persistence interface for the auth service.
// *Repository satisfies this interface.
type operatorRepo interface {
	Create(ctx context.Context, op *Operator) error
	GetByUsername(ctx context.Context, username string) (*Operator, error)
}

// Service authenticates operators and issues session tokens.
type Service struct {
	repo   operatorRepo
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewService creates an auth Service.
func NewService(repo operatorRepo, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// CreateOperator registers a new operator with a bcrypt-hashed password.
func (s *Service) CreateOperator(ctx context.Context, username, password, role string) (*Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if role == "" {
		role = RoleAnalyst
	}
	op := &Operator{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// Login verifies credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	op, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(op)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.tokens.TTL()),
		Role:      op.Role,
	}, nil
}
