package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/frontend/handlers"
	"github.com/cory-johannsen/arena/internal/frontend/telnet"
	"github.com/cory-johannsen/arena/internal/frontend/web"
	"github.com/cory-johannsen/arena/internal/game/board"
	"github.com/cory-johannsen/arena/internal/game/command"
	"github.com/cory-johannsen/arena/internal/game/duel"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/gateway"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/server"
	"github.com/cory-johannsen/arena/internal/storage/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket, Telnet, and health listeners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), path)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lifecycle, err := buildLifecycle(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("arena initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.Bool("telnet", cfg.Telnet.Enabled),
		zap.Bool("database", cfg.Database.Enabled),
	)
	return lifecycle.Run(ctx)
}

// buildLifecycle wires every service for cfg. Services are stopped in
// reverse order: listeners first, then the history recorder, then the pool.
func buildLifecycle(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.Lifecycle, error) {
	lifecycle := server.NewLifecycle(logger)

	var store history.Store = history.NopStore{}
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewMatchRepository(pool.DB())
		lifecycle.Add("postgres", pool)
	}

	recorder := history.NewRecorder(store, cfg.History.QueueSize, cfg.History.WriteTimeout, logger)
	lifecycle.Add("history", recorder)

	rooms := room.NewRegistry(map[room.Kind]room.Factory{
		room.KindDuel:  duel.NewState,
		room.KindBoard: board.NewState,
	})
	sessions := session.NewManager(session.Options{
		OutboxSize: cfg.Gateway.OutboxSize,
		RateLimit:  cfg.Gateway.RateLimit,
		RateBurst:  cfg.Gateway.RateBurst,
	})
	gw := gateway.New(rooms, sessions, recorder, logger)

	health := server.NewHealthService(cfg.GRPC.Addr(), logger)
	lifecycle.Add("grpc-health", health)
	lifecycle.OnShutdown(health.Drain)

	ws := web.NewServer(cfg.Server.Addr(), gw, web.Options{
		WriteWait:      cfg.Server.WriteWait,
		PongWait:       cfg.Server.PongWait,
		PingPeriod:     cfg.Server.PingPeriod,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)
	lifecycle.Add("websocket", ws)

	if cfg.Telnet.Enabled {
		text := handlers.NewArenaHandler(gw, command.DefaultRegistry(), logger)
		lifecycle.Add("telnet", telnet.NewAcceptor(cfg.Telnet, text, logger))
	}
	return lifecycle, nil
}
