package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/suPer8Hu/ai-debate/internal/ai"
	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/db"
	"github.com/suPer8Hu/ai-debate/internal/httpapi"
	"github.com/suPer8Hu/ai-debate/internal/logging"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, true)
	slog.SetDefault(logger)

	policy := usage.DefaultPolicy()
	if cfg.TierPolicyFile != "" {
		if policy, err = usage.LoadPolicyFile(cfg.TierPolicyFile); err != nil {
			logger.Error("load tier policy", "err", err)
			os.Exit(1)
		}
	}

	gdb, err := db.Connect(cfg.DevDBDSN)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	reg := newRegistry(cfg, logger)
	svc := chat.NewService(repo, reg, policy, cfg.ChatContextWindowSize, logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.DevListenAddr,
		Handler:           httpapi.NewRouter(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dev backend listening", "addr", cfg.DevListenAddr, "participants", reg.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

// newRegistry routes participants to providers: OLLAMA_PARTICIPANTS to the
// local Ollama model, the known cloud names to OpenRouter when a key is set,
// anything else to the echo provider.
func newRegistry(cfg config.Config, logger *slog.Logger) *ai.Registry {
	reg := ai.NewRegistry()
	reg.SetFallback(func(ctx context.Context, participant string) (ai.Provider, error) {
		return ai.NewEchoProvider(participant), nil
	})

	if cfg.OpenRouterAPIKey != "" {
		for name, model := range ai.DefaultOpenRouterModels {
			model := model
			reg.Register(name, func(ctx context.Context, participant string) (ai.Provider, error) {
				return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, participant), nil
			})
		}
	}
	for _, name := range cfg.OllamaParticipants {
		reg.Register(name, func(ctx context.Context, participant string) (ai.Provider, error) {
			return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, participant), nil
		})
	}

	if cfg.OpenRouterAPIKey == "" && len(cfg.OllamaParticipants) == 0 {
		logger.Warn("no AI provider configured, every participant uses the echo provider")
	}
	return reg
}
