// Package operator authenticates sale operators and issues owner tokens.
package operator

import (
	"context"
	"log/slog"
	"time"

	dErrors "crowdgate/pkg/domain-errors"
	"crowdgate/pkg/platform/secrets"
)

// TokenIssuer mints owner access tokens for authenticated operators.
type TokenIssuer interface {
	GenerateOwnerToken(actorID string, expiresIn time.Duration) (string, error)
}

// Credential is a configured operator login.
type Credential struct {
	Username     string
	PasswordHash string
}

// Service verifies operator credentials against their bcrypt hashes and
// issues owner tokens.
type Service struct {
	credentials map[string]string
	issuer      TokenIssuer
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func New(creds []Credential, issuer TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) (*Service, error) {
	if issuer == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token issuer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]string, len(creds))
	for _, c := range creds {
		if c.Username == "" || c.PasswordHash == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "operator credential must have a username and password hash")
		}
		byName[c.Username] = c.PasswordHash
	}
	return &Service{
		credentials: byName,
		issuer:      issuer,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}, nil
}

// TokenResult is a successful login.
type TokenResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Login verifies a username and password and returns an owner token. Unknown
// users and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenResult, error) {
	hash, ok := s.credentials[username]
	if !ok {
		s.logger.WarnContext(ctx, "login for unknown operator", "username", username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := secrets.Verify(password, hash); err != nil {
		s.logger.WarnContext(ctx, "login with wrong password", "username", username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.issuer.GenerateOwnerToken(username, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "issue owner token", err)
	}
	return &TokenResult{AccessToken: token, ExpiresIn: s.tokenTTL}, nil
}
