package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/everafter-app/server/internal/api"
	"github.com/everafter-app/server/internal/concierge/graph"
	"github.com/everafter-app/server/internal/concierge/model"
	"github.com/everafter-app/server/internal/concierge/store"
	"github.com/everafter-app/server/internal/core"
	logx "github.com/everafter-app/server/pkg/logger"
	pkgredis "github.com/everafter-app/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the concierge service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Concierge configs
	Concierge    model.ConciergeModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Printf("Failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open store")
	}
	defer db.Close()

	conversationRepo, err := buildConversationRepo(cfg, db)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise conversation store")
	}

	runner, err := graph.BuildConciergeGraph(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		Concierge:        cfg.Concierge,
		Prompt:           cfg.Prompt,
		Conversation:     cfg.Conversation,
		ConversationRepo: conversationRepo,
		Kernels:          db,
		Tenants:          db,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build concierge graph")
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewHandler(api.Deps{
			Runner:        runner,
			Tenants:       db,
			Kernels:       db,
			Conversations: conversationRepo,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logx.Info().Str("addr", cfg.ListenAddr).Str("env", env.String()).Msg("concierge listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logx.Fatal().Err(err).Msg("server exited")
	}
	logx.Info().Msg("shutdown complete")
}

// buildConversationRepo selects the conversation backend: durable SQLite by
// default, Redis with a TTL for ephemeral onboarding sessions.
func buildConversationRepo(cfg AppConfig, db *store.Store) (model.ConversationRepository, error) {
	switch cfg.Conversation.Backend {
	case "sqlite", "":
		return db, nil
	case "redis":
		ttl, err := time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
		}
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		return store.NewRedisConversationRepository(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unknown conversation backend %q", cfg.Conversation.Backend)
	}
}
