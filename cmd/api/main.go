package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/akozyrev/factstack/internal/adapters/http"
	"github.com/akozyrev/factstack/internal/bootstrap"
	"github.com/akozyrev/factstack/internal/config"
	"github.com/akozyrev/factstack/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "factstack-api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("factstack-api")
	router := httpadapter.NewRouter(app.AskUC, app.IngestUC, app.Repo, httpadapter.RouterOptions{
		Runs:    app.Runs,
		Metrics: httpMetrics,
		Service: "factstack-api",
		Config: httpadapter.ConfigView{
			TopK:                cfg.AskTopK,
			RerankTopK:          cfg.AskRerankTopK,
			RewriteEnabled:      cfg.RewriteEnabled,
			TranslationEnabled:  cfg.TranslationEnabled,
			MinScoreThreshold:   cfg.MinScoreThreshold,
			TranslationLeniency: cfg.TranslationLeniency,
			MaxContextTokens:    cfg.MaxContextTokens,
			Backend:             cfg.Backend,
		},
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxInFlight:    cfg.APIMaxInFlight,
	}).Handler()

	validator, err := httpadapter.NewOpenAPIValidator()
	if err != nil {
		log.Fatalf("openapi validator error: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      validator(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
