package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

// DefaultRefreshThreshold margen antes de la expiración a partir del cual se renueva el token.
const DefaultRefreshThreshold = 5 * time.Minute

// ShouldRefresh true si al token le queda menos de threshold de vida (o ya expiró).
func ShouldRefresh(expiresAt, now time.Time, threshold time.Duration) bool {
	return expiresAt.Sub(now) < threshold
}

// ExpiryFromJWT lee el claim exp de un token con forma JWT sin verificar la firma.
// ok=false si el token no es un JWT o no trae exp.
func ExpiryFromJWT(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Token resultado de un intercambio OAuth.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenRefresher intercambia refresh tokens en el endpoint /oauth/token del marketplace.
type TokenRefresher struct {
	http         *httpclient.Client
	clientID     string
	clientSecret string
	now          func() time.Time
}

// NewTokenRefresher crea el refresher; usa como mucho 2 reintentos.
func NewTokenRefresher(baseURL, clientID, clientSecret string, cfg httpclient.Config) *TokenRefresher {
	cfg.BaseURL = baseURL
	if cfg.MaxRetries > 2 {
		cfg.MaxRetries = 2
	}
	return &TokenRefresher{
		http:         httpclient.New(cfg),
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Configured indica si hay credenciales de aplicación para renovar tokens.
func (r *TokenRefresher) Configured() bool {
	return r != nil && r.clientID != "" && r.clientSecret != ""
}

// Refresh obtiene un access token nuevo. Si la respuesta no trae refresh token se conserva el anterior.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if !r.Configured() {
		return nil, errors.New("oauth: refresher sin client_id/client_secret")
	}
	if refreshToken == "" {
		return nil, errors.New("oauth: refresh token vacío")
	}
	resp, err := r.http.Post(ctx, "/oauth/token", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     r.clientID,
		"client_secret": r.clientSecret,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: renovar token: %w", err)
	}
	var body tokenResponse
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("oauth: renovar token: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("oauth: respuesta sin access_token")
	}
	tok := &Token{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	if body.ExpiresIn > 0 {
		tok.ExpiresAt = r.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	} else if exp, ok := ExpiryFromJWT(body.AccessToken); ok {
		tok.ExpiresAt = exp
	}
	return tok, nil
}
