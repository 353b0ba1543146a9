package entity

import "time"

// Seller tenant cuyo inventario se sincroniza desde un marketplace.
// Lo crea el onboarding; este proceso solo lo lee.
type Seller struct {
	ID          string
	Marketplace Marketplace
	Credentials Credentials
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credentials credenciales opacas del marketplace.
// WB usa token bearer (con refresh opcional); Ozon usa el par Client-Id / Api-Key.
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	ClientID       string
	APIKey         string
}

// HasCredentialsFor indica si el seller tiene lo mínimo para llamar a la API del marketplace.
func (s *Seller) HasCredentialsFor(m Marketplace) bool {
	switch m {
	case MarketplaceWB:
		return s.Credentials.AccessToken != ""
	case MarketplaceOzon:
		return s.Credentials.ClientID != "" && s.Credentials.APIKey != ""
	}
	return false
}
