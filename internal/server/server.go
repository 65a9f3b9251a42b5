package server

import (
	"fmt"
	"net/http"
	"time"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/config"
	"quantum-stock/internal/fetcher"
	custommiddleware "quantum-stock/internal/middleware"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/transport"
	"quantum-stock/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	redis  *redis.Client
}

// NewServer wires the stock BFF. redisClient may be nil, which disables
// rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) (*Server, error) {
	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Remote products API and the shared page cache
	productRepo := repository.NewProductRepository(cfg.API.URL, cfg.API.Timeout, logger)
	pages := fetcher.New(productRepo, fetcher.Options{
		DedupInterval: cfg.Stock.DedupInterval,
		Logger:        logger,
	})

	// Initialize handlers
	stockHandler := transport.NewStockHandler(productRepo, pages, renderer, transport.StockHandlerOptions{
		PageSize:        cfg.Stock.PageSize,
		SearchMinLength: cfg.Stock.SearchMinLength,
	}, logger)

	// Create auth middleware
	parser, err := auth.NewParserFor(cfg.Keycloak.ClientID, cfg.JWT.Secret, cfg.Keycloak.PublicKey)
	if err != nil {
		return nil, err
	}
	if !parser.Verifies() {
		logger.Warn("Access tokens are not verified; set KEYCLOAK_PUBLIC_KEY to enforce roles here")
	}
	authHandler := transport.NewAuthHandler(
		cfg.Keycloak.OAuth2(cfg.Server.PublicURL+"/auth/callback"),
		parser,
		cfg.Server.SecureCookies(),
		logger,
	)
	mw := transport.Middlewares{
		Session:  custommiddleware.SessionMiddleware(parser, logger),
		Auth:     custommiddleware.AuthMiddleware(parser, logger),
		Admin:    custommiddleware.RequireAdmin(logger),
		JSONBody: custommiddleware.JSONBodyMiddleware(logger),
	}
	if redisClient != nil && cfg.RateLimit.Enabled {
		mw.RateLimit = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:stock",
		}, logger)
	}

	// Register routes
	stockHandler.RegisterRoutes(router, mw)
	authHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		redis:  redisClient,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close Redis connection
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
