package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/cfa-prep/study-service/internal/config"
)

// CasdoorProvider validates JWTs issued by a Casdoor instance
type CasdoorProvider struct {
	client *casdoorsdk.Client
	logger *slog.Logger
}

func NewCasdoorProvider(cfg config.CasdoorConfig, logger *slog.Logger) (*CasdoorProvider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("casdoor endpoint and certificate are required")
	}
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorProvider{client: client, logger: logger}, nil
}

func (p *CasdoorProvider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.client.ParseJwtToken(token)
	if err != nil {
		p.logger.DebugContext(ctx, "Rejected bearer token", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := claims.User.Id
	if userID == "" {
		// Older Casdoor tokens carry no id; owner/name is unique per instance.
		userID = claims.User.Owner + "/" + claims.User.Name
	}

	name := claims.User.DisplayName
	if name == "" {
		name = claims.User.Name
	}

	return &Identity{
		UserID:  userID,
		Email:   claims.User.Email,
		Name:    name,
		IsAdmin: claims.User.IsAdmin,
	}, nil
}
