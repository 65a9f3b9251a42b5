package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

type Config struct {
	Server    ServerConfig
	API       APIConfig
	Keycloak  KeycloakConfig
	Stock     StockConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	PublicURL string
}

// APIConfig points at the products REST API
type APIConfig struct {
	URL     string
	Timeout time.Duration
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string // empty for a public client, which relies on PKCE
	PublicKey    string // realm RSA key, PEM or bare base64; verifies access tokens
}

// StockConfig tunes the stock screen
type StockConfig struct {
	PageSize        int
	DedupInterval   time.Duration
	SearchDebounce  time.Duration
	PriceDebounce   time.Duration
	SearchMinLength int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type JWTConfig struct {
	Secret string // optional; when empty tokens are decoded without verification
}

// Load reads .env and the environment
func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("API_URL", "http://localhost:8000")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("KEYCLOAK_URL", "http://localhost:8180")
	v.SetDefault("KEYCLOAK_REALM", "quantum-stock")
	v.SetDefault("KEYCLOAK_CLIENT_ID", "quantum-stock-frontend")
	v.SetDefault("STOCK_PAGE_SIZE", 10)
	v.SetDefault("STOCK_DEDUP_INTERVAL", "60s")
	v.SetDefault("SEARCH_DEBOUNCE_MS", 500)
	v.SetDefault("PRICE_DEBOUNCE_MS", 400)
	v.SetDefault("SEARCH_MIN_LENGTH", 2)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:      v.GetString("SERVER_PORT"),
			Env:       v.GetString("SERVER_ENV"),
			PublicURL: strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		},
		API: APIConfig{
			URL:     strings.TrimRight(v.GetString("API_URL"), "/"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		Keycloak: KeycloakConfig{
			URL:      strings.TrimRight(v.GetString("KEYCLOAK_URL"), "/"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
			PublicKey:    v.GetString("KEYCLOAK_PUBLIC_KEY"),
		},
		Stock: StockConfig{
			PageSize:        v.GetInt("STOCK_PAGE_SIZE"),
			DedupInterval:   v.GetDuration("STOCK_DEDUP_INTERVAL"),
			SearchDebounce:  time.Duration(v.GetInt("SEARCH_DEBOUNCE_MS")) * time.Millisecond,
			PriceDebounce:   time.Duration(v.GetInt("PRICE_DEBOUNCE_MS")) * time.Millisecond,
			SearchMinLength: v.GetInt("SEARCH_MIN_LENGTH"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
	}
}

// Validate reports settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if _, err := url.ParseRequestURI(c.API.URL); err != nil {
		errs = append(errs, fmt.Errorf("API_URL: %w", err))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API_TIMEOUT must be positive"))
	}
	if c.Keycloak.ClientID == "" {
		errs = append(errs, errors.New("KEYCLOAK_CLIENT_ID is required"))
	}
	if c.Stock.PageSize <= 0 {
		errs = append(errs, errors.New("STOCK_PAGE_SIZE must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

// OAuth2 is the authorization code client of the realm, returning to redirectURL
func (k KeycloakConfig) OAuth2(redirectURL string) *oauth2.Config {
	base := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", k.URL, url.PathEscape(k.Realm))
	return &oauth2.Config{
		ClientID:     k.ClientID,
		ClientSecret: k.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/auth",
			TokenURL:  base + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// SecureCookies reports whether cookies must be limited to HTTPS
func (s ServerConfig) SecureCookies() bool {
	return strings.HasPrefix(s.PublicURL, "https://")
}

// Addr is host:port of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
