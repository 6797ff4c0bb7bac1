package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the authenticated caller as reported by the identity provider
type Identity struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Provider turns a bearer token into an Identity
type Provider interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// StaticProvider maps fixed tokens to identities. It backs tests and
// local development without an identity server.
type StaticProvider struct {
	identities map[string]Identity
}

func NewStaticProvider(identities map[string]Identity) *StaticProvider {
	cp := make(map[string]Identity, len(identities))
	for token, id := range identities {
		cp[token] = id
	}
	return &StaticProvider{identities: cp}
}

func (p *StaticProvider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, ok := p.identities[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}
