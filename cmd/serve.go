package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/api"
	"github.com/qupid/dq-suggestions/internal/config"
	"github.com/qupid/dq-suggestions/internal/llm"
	"github.com/qupid/dq-suggestions/internal/store"
	"github.com/qupid/dq-suggestions/internal/suggest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profiling HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourceDB, err := setupSource(cmd)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	storePool, err := openStorePool(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer storePool.Close()

	client, err := llm.NewClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		GroqAPIKey:      cfg.LLM.GroqAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		GeminiAPIKey:    cfg.LLM.GeminiAPIKey,
		OllamaHost:      cfg.LLM.OllamaHost,
	})
	if err != nil {
		return err
	}

	svc := suggest.NewService(client, logger)
	st := store.New(storePool, logger)
	server := api.NewServer(logger, sourceDB, st, svc, cfg.Source.DBName)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", addr),
			zap.String("provider", client.Provider()),
			zap.String("model", client.Model()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func openStorePool(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	pool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to store database: %w", err)
	}
	return pool, nil
}
