// Package marketplace selecciona la variante de cliente según el marketplace del seller
// y resuelve su autenticación (incluida la renovación de tokens OAuth de WB).
package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/marketplace/ozon"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/marketplace/wb"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

// RegistryConfig configuración HTTP por variante. BaseURL vacío usa el valor por defecto de cada cliente.
type RegistryConfig struct {
	WB               httpclient.Config
	Ozon             httpclient.Config
	WBRefresher      *TokenRefresher
	RefreshThreshold time.Duration
}

// Registry implementa inventorysync.ClientProvider.
type Registry struct {
	cfg RegistryConfig
	log zerolog.Logger
	now func() time.Time
}

var _ inventorysync.ClientProvider = (*Registry)(nil)

func NewRegistry(cfg RegistryConfig, log zerolog.Logger) *Registry {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.WB.Logger == nil {
		cfg.WB.Logger = &log
	}
	if cfg.Ozon.Logger == nil {
		cfg.Ozon.Logger = &log
	}
	return &Registry{cfg: cfg, log: log.With().Str("component", "marketplace_registry").Logger(), now: time.Now}
}

// ClientFor devuelve el cliente de la variante del seller.
func (r *Registry) ClientFor(ctx context.Context, seller *entity.Seller) (inventorysync.MarketplaceClient, error) {
	if !seller.Marketplace.Valid() {
		return nil, fmt.Errorf("seller %s: %q: %w", seller.ID, seller.Marketplace, domain.ErrUnknownMarketplace)
	}
	if !seller.HasCredentialsFor(seller.Marketplace) {
		return nil, fmt.Errorf("seller %s (%s): %w", seller.ID, seller.Marketplace, domain.ErrMissingCredentials)
	}
	switch seller.Marketplace {
	case entity.MarketplaceWB:
		token, err := r.wbToken(ctx, seller)
		if err != nil {
			return nil, err
		}
		return wb.New(token, r.cfg.WB), nil
	case entity.MarketplaceOzon:
		return ozon.New(seller.Credentials.ClientID, seller.Credentials.APIKey, r.cfg.Ozon), nil
	}
	return nil, fmt.Errorf("seller %s: %q: %w", seller.ID, seller.Marketplace, domain.ErrUnknownMarketplace)
}

// wbToken devuelve el access token vigente, renovándolo en memoria si está por expirar.
// Un fallo de renovación solo es fatal si el token ya expiró.
func (r *Registry) wbToken(ctx context.Context, seller *entity.Seller) (string, error) {
	creds := seller.Credentials
	var expiresAt time.Time
	known := false
	if creds.TokenExpiresAt != nil {
		expiresAt, known = *creds.TokenExpiresAt, true
	} else {
		expiresAt, known = ExpiryFromJWT(creds.AccessToken)
	}
	now := r.now()
	if !known || !ShouldRefresh(expiresAt, now, r.cfg.RefreshThreshold) {
		return creds.AccessToken, nil
	}

	expired := !expiresAt.After(now)
	if creds.RefreshToken == "" || !r.cfg.WBRefresher.Configured() {
		if expired {
			return "", fmt.Errorf("seller %s: token expirado sin posibilidad de renovación: %w", seller.ID, domain.ErrMissingCredentials)
		}
		return creds.AccessToken, nil
	}

	tok, err := r.cfg.WBRefresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		if expired {
			return "", fmt.Errorf("seller %s: %w", seller.ID, err)
		}
		r.log.Warn().Err(err).Str("seller_id", seller.ID).Msg("no se pudo renovar el token, se usa el actual")
		return creds.AccessToken, nil
	}
	r.log.Info().Str("seller_id", seller.ID).Time("expires_at", tok.ExpiresAt).Msg("token WB renovado")
	return tok.AccessToken, nil
}
