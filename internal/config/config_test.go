package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8000", cfg.API.URL)
	assert.Equal(t, "quantum-stock-frontend", cfg.Keycloak.ClientID)
	assert.Equal(t, 10, cfg.Stock.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Stock.DedupInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Stock.SearchDebounce)
	assert.Equal(t, 400*time.Millisecond, cfg.Stock.PriceDebounce)
	assert.Equal(t, 2, cfg.Stock.SearchMinLength)
	assert.Empty(t, cfg.JWT.Secret)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/api/v1/")
	t.Setenv("STOCK_PAGE_SIZE", "25")
	t.Setenv("PRICE_DEBOUNCE_MS", "250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("SERVER_ENV", "production")

	cfg := Load()

	assert.Equal(t, "https://api.example.com/api/v1", cfg.API.URL)
	assert.Equal(t, 25, cfg.Stock.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Stock.PriceDebounce)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	t.Setenv("API_URL", "not a url")
	t.Setenv("STOCK_PAGE_SIZE", "0")

	err := Load().Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_URL")
	assert.Contains(t, err.Error(), "STOCK_PAGE_SIZE")
}

func TestKeycloakOAuth2(t *testing.T) {
	k := KeycloakConfig{URL: "https://sso.example.com", Realm: "quantum-stock", ClientID: "quantum-stock-frontend"}

	oauth := k.OAuth2("http://localhost:8080/auth/callback")
	assert.Equal(t, "https://sso.example.com/realms/quantum-stock/protocol/openid-connect/token", oauth.Endpoint.TokenURL)

	u, err := url.Parse(oauth.AuthCodeURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "/realms/quantum-stock/protocol/openid-connect/auth", u.Path)
	assert.Equal(t, "quantum-stock-frontend", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/callback", u.Query().Get("redirect_uri"))
	assert.Equal(t, "st", u.Query().Get("state"))
}

func TestSecureCookies(t *testing.T) {
	assert.True(t, ServerConfig{PublicURL: "https://stock.example.com"}.SecureCookies())
	assert.False(t, ServerConfig{PublicURL: "http://localhost:8080"}.SecureCookies())
}
