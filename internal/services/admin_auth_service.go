package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/favianyip/shunharvest/internal/platform/auth"
)

// ErrAdminUnauthorized is returned for any failed login so callers cannot probe usernames.
var ErrAdminUnauthorized = errors.New("admin auth: unauthorized")

// AdminToken is the bearer token handed to the back office.
type AdminToken struct {
	Token     string
	ExpiresAt time.Time
}

type credentialChecker interface {
	Check(username, password string) error
}

type tokenIssuer interface {
	Issue(username string) (string, time.Time, error)
}

// AdminAuthServiceDeps wires the admin login flow.
type AdminAuthServiceDeps struct {
	Credentials credentialChecker
	Tokens      tokenIssuer
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type adminAuthService struct {
	credentials credentialChecker
	tokens      tokenIssuer
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewAdminAuthService constructs the admin login service.
func NewAdminAuthService(deps AdminAuthServiceDeps) (AdminAuthService, error) {
	if deps.Credentials == nil {
		return nil, errors.New("admin auth service: credential checker is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("admin auth service: token issuer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &adminAuthService{credentials: deps.Credentials, tokens: deps.Tokens, logger: logger}, nil
}

func (s *adminAuthService) Login(ctx context.Context, username, password string) (AdminToken, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AdminToken{}, ErrAdminUnauthorized
	}
	if err := s.credentials.Check(username, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger(ctx, "admin.login.rejected", map[string]any{"username": username})
			return AdminToken{}, ErrAdminUnauthorized
		}
		return AdminToken{}, err
	}
	token, expiresAt, err := s.tokens.Issue(username)
	if err != nil {
		return AdminToken{}, err
	}
	s.logger(ctx, "admin.login", map[string]any{"username": username, "expiresAt": expiresAt})
	return AdminToken{Token: token, ExpiresAt: expiresAt}, nil
}
