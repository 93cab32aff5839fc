package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/rental-backend/internal/auth"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/db"
	"github.com/shinyyama/rental-backend/internal/realtime"
	"github.com/shinyyama/rental-backend/internal/server"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/snowflake"
)

// Set at build time with -ldflags.
var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.SlogLevel())
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}
	store, err := db.Open(cfg, node, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	origin := fmt.Sprintf("%s-%d", hostname(), cfg.NodeID)
	hubCfg := realtime.HubConfig{Origin: origin, Logger: logger}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		hubCfg.Presence = realtime.NewRedisPresence(rdb)
	}
	switch cfg.RelayDriver {
	case config.RelayRedis:
		hubCfg.Relay = realtime.NewRedisRelay(rdb, cfg.RedisChannel, logger)
	case config.RelayKafka:
		hubCfg.Relay = realtime.NewKafkaRelay(cfg.KafkaBrokers, cfg.KafkaTopic, origin, logger)
	}
	hub := realtime.NewHub(realtime.NewRegistry(), hubCfg)
	if hubCfg.Relay != nil {
		defer hubCfg.Relay.Close()
	}
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("relay stopped", "error", err)
		}
	}()

	settings := service.Settings{StoreTimeout: cfg.StoreTimeout, Logger: logger}
	srv := server.New(server.Deps{
		Conversations:  service.NewConversationService(store.Conversations, store.Directory, settings),
		Messages:       service.NewMessageService(store.Conversations, store.Messages, hub, settings),
		Hub:            hub,
		Verifier:       verifier,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		SHA:            gitSHA,
		BuildTime:      buildTime,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.AuthProvider == config.AuthFirebase {
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "node" + strconv.Itoa(os.Getpid())
	}
	return h
}
