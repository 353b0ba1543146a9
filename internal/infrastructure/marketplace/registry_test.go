package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	s, err := tok.SignedString([]byte("secreto"))
	require.NoError(t, err)
	return s
}

// wbServer registra el último Authorization recibido en /stocks.
func wbServer(t *testing.T) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stocks":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &auth
}

func oauthServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/oauth/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]string
		_ = json.Unmarshal(raw, &body)
		if status != http.StatusOK || body["grant_type"] != "refresh_token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"nuevo","refresh_token":"r2","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newRegistry(wbURL string, refresher *TokenRefresher) *Registry {
	r := NewRegistry(RegistryConfig{
		WB:          httpclient.Config{BaseURL: wbURL, RetryDelay: time.Millisecond},
		WBRefresher: refresher,
	}, zerolog.Nop())
	r.now = func() time.Time { return now }
	return r
}

func TestShouldRefresh(t *testing.T) {
	assert.True(t, ShouldRefresh(now.Add(4*time.Minute), now, DefaultRefreshThreshold))
	assert.True(t, ShouldRefresh(now.Add(-time.Minute), now, DefaultRefreshThreshold))
	assert.False(t, ShouldRefresh(now.Add(6*time.Minute), now, DefaultRefreshThreshold))
}

func TestExpiryFromJWT(t *testing.T) {
	exp := now.Add(time.Hour)
	got, ok := ExpiryFromJWT(signedJWT(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = ExpiryFromJWT("token-opaco")
	assert.False(t, ok)
}

func TestTokenRefresher_Refresh(t *testing.T) {
	srv, calls := oauthServer(t, http.StatusOK)
	r := NewTokenRefresher(srv.URL, "app", "secret", httpclient.Config{})
	r.now = func() time.Time { return now }

	tok, err := r.Refresh(context.Background(), "r1")

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "nuevo", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)
	assert.True(t, tok.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestTokenRefresher_SinConfigurar(t *testing.T) {
	var r *TokenRefresher
	assert.False(t, r.Configured())
	_, err := NewTokenRefresher("http://x", "", "", httpclient.Config{}).Refresh(context.Background(), "r1")
	assert.Error(t, err)
}

func TestClientFor_CredencialesYVariantes(t *testing.T) {
	reg := newRegistry("http://unused", nil)

	_, err := reg.ClientFor(context.Background(), &entity.Seller{ID: "s1", Marketplace: entity.MarketplaceWB})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = reg.ClientFor(context.Background(), &entity.Seller{ID: "s2", Marketplace: entity.MarketplaceOzon,
		Credentials: entity.Credentials{ClientID: "cid"}})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials, "Ozon necesita Client-Id y Api-Key")

	_, err = reg.ClientFor(context.Background(), &entity.Seller{ID: "s3", Marketplace: "yandex",
		Credentials: entity.Credentials{AccessToken: "t"}})
	assert.ErrorIs(t, err, domain.ErrUnknownMarketplace)

	c, err := reg.ClientFor(context.Background(), &entity.Seller{ID: "s4", Marketplace: entity.MarketplaceOzon,
		Credentials: entity.Credentials{ClientID: "cid", APIKey: "k"}})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClientFor_WB_RenuevaTokenProximoAExpirar(t *testing.T) {
	wbSrv, auth := wbServer(t)
	oSrv, calls := oauthServer(t, http.StatusOK)
	reg := newRegistry(wbSrv.URL, NewTokenRefresher(oSrv.URL, "app", "secret", httpclient.Config{}))
	exp := now.Add(2 * time.Minute)
	seller := &entity.Seller{ID: "s1", Marketplace: entity.MarketplaceWB,
		Credentials: entity.Credentials{AccessToken: "viejo", RefreshToken: "r1", TokenExpiresAt: &exp}}

	c, err := reg.ClientFor(context.Background(), seller)
	require.NoError(t, err)
	_, err = c.FetchInventory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Bearer nuevo", auth.Load())
	assert.Equal(t, "viejo", seller.Credentials.AccessToken, "el seller no se modifica")
}

func TestClientFor_WB_TokenVigenteNoSeRenueva(t *testing.T) {
	wbSrv, auth := wbServer(t)
	oSrv, calls := oauthServer(t, http.StatusOK)
	reg := newRegistry(wbSrv.URL, NewTokenRefresher(oSrv.URL, "app", "secret", httpclient.Config{}))
	token := signedJWT(t, now.Add(time.Hour))
	seller := &entity.Seller{ID: "s1", Marketplace: entity.MarketplaceWB,
		Credentials: entity.Credentials{AccessToken: token, RefreshToken: "r1"}}

	c, err := reg.ClientFor(context.Background(), seller)
	require.NoError(t, err)
	_, err = c.FetchInventory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, "Bearer "+token, auth.Load())
}

func TestClientFor_WB_FalloDeRenovacion(t *testing.T) {
	oSrv, _ := oauthServer(t, http.StatusUnauthorized)
	reg := newRegistry("http://unused", NewTokenRefresher(oSrv.URL, "app", "secret", httpclient.Config{}))

	porExpirar := now.Add(time.Minute)
	_, err := reg.ClientFor(context.Background(), &entity.Seller{ID: "s1", Marketplace: entity.MarketplaceWB,
		Credentials: entity.Credentials{AccessToken: "t", RefreshToken: "r1", TokenExpiresAt: &porExpirar}})
	assert.NoError(t, err, "aún vigente: se usa el token actual")

	expirado := now.Add(-time.Minute)
	_, err = reg.ClientFor(context.Background(), &entity.Seller{ID: "s2", Marketplace: entity.MarketplaceWB,
		Credentials: entity.Credentials{AccessToken: "t", RefreshToken: "r1", TokenExpiresAt: &expirado}})
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
}
