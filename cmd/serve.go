package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/application"
	lothttp "github.com/cristianortiz/auctionEngine/internal/auction/infra/http"
	"github.com/cristianortiz/auctionEngine/internal/auction/infra/repository/postgres"
	lotws "github.com/cristianortiz/auctionEngine/internal/auction/infra/websocket"
	"github.com/cristianortiz/auctionEngine/internal/auth"
	"github.com/cristianortiz/auctionEngine/internal/registry"
	"github.com/cristianortiz/auctionEngine/internal/shared/config"
	"github.com/cristianortiz/auctionEngine/internal/shared/db"
	"github.com/cristianortiz/auctionEngine/internal/shared/httpserver"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/cristianortiz/auctionEngine/internal/shared/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const startupTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger.SetLevel(cfg.Log.Level)
	log.Info("Starting AuctionEngine server...")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	manager := db.New(cfg.Database.DSN(),
		db.WithMaxAttempts(cfg.Database.ReconnectAttempts),
		db.WithBackoff(cfg.Database.ReconnectBackoff),
	)
	defer func() { _ = manager.Close(context.Background()) }()

	startCtx, startCancel := context.WithTimeout(ctx, startupTimeout)
	defer startCancel()
	if err := manager.Connect(startCtx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	lotRepo := postgres.NewLotRepository(manager)
	if err := lotRepo.EnsureSchema(startCtx); err != nil {
		return err
	}

	cache, closeCache := newTokenCache(startCtx, cfg)
	defer closeCache()
	verifier := auth.NewVerifier(cfg.Auth, cache)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	lotService := application.NewLotService(lotRepo,
		application.WithNotifier(lotws.NewLotNotifier(hub)),
	)

	server := httpserver.NewServer()
	lothttp.NewLotHandler(lotService, verifier).RegisterRoutes(server.App())
	lotws.NewAuctionWSHandler(ctx, lotService, hub).RegisterRoutes(server.App())

	go announce(ctx, registry.NewClient(cfg.Registry))

	if err := server.Start(cfg.Server.Addr()); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// newTokenCache prefers redis when an address is configured and reachable.
func newTokenCache(ctx context.Context, cfg *config.Config) (auth.TokenCache, func()) {
	if cfg.Redis.Address == "" {
		log.Info("Using in-memory token cache", zap.Duration("ttl", cfg.Auth.TokenCacheTTL))
		return auth.NewMemoryTokenCache(cfg.Auth.TokenCacheTTL), func() {}
	}

	redisCache := auth.NewRedisTokenCache(auth.NewRedisClient(cfg.Redis), cfg.Auth.TokenCacheTTL)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, falling back to in-memory token cache",
			zap.String("address", cfg.Redis.Address),
			zap.Error(err),
		)
		_ = redisCache.Close()
		return auth.NewMemoryTokenCache(cfg.Auth.TokenCacheTTL), func() {}
	}
	log.Info("Using redis token cache", zap.String("address", cfg.Redis.Address))
	return redisCache, func() { _ = redisCache.Close() }
}

// announce registers the routes with the service registry. Failure is not fatal.
func announce(ctx context.Context, client *registry.Client) {
	if err := client.Register(ctx, lothttp.Methods()); err != nil {
		log.Warn("Service registration failed", zap.Error(err))
		return
	}
	log.Info("Service registered", zap.String("service", registry.ServiceName))
}
