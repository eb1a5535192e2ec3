// Command botd runs the conversational credit bot: it receives chat
// platform webhooks, advances conversations through the state machine,
// and reclaims abandoned ones via deferred inactivity checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/emprestedigital/creditbot/internal/bot"
	"github.com/emprestedigital/creditbot/internal/config"
	"github.com/emprestedigital/creditbot/internal/credit"
	"github.com/emprestedigital/creditbot/internal/facta"
	"github.com/emprestedigital/creditbot/internal/huggy"
	"github.com/emprestedigital/creditbot/internal/intake"
	"github.com/emprestedigital/creditbot/internal/messages"
	"github.com/emprestedigital/creditbot/internal/session"
	"github.com/emprestedigital/creditbot/internal/taskqueue"
	"github.com/emprestedigital/creditbot/internal/token"
	"github.com/emprestedigital/creditbot/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "botd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}

	catalog, err := messages.Load()
	if err != nil {
		return err
	}

	sessions := session.NewRedisStore(rdb, cfg.Redis.KeyPrefix, session.DefaultTTL)
	queue := taskqueue.NewRedisQueue(rdb, cfg.Redis.KeyPrefix)

	tokens := token.NewManager(token.NewRedisStore(rdb, cfg.Redis.KeyPrefix), logger)
	factaClient := facta.NewClient(facta.Config{
		BaseURL:  cfg.Facta.BaseURL,
		User:     cfg.Facta.User,
		Password: cfg.Facta.Password,
	}, tokens, logger)
	offers := credit.NewService(factaClient, logger)

	chat := huggy.NewService(
		huggy.NewClient(huggy.Config{
			BaseURL:  cfg.Huggy.BaseURL,
			APIToken: cfg.Huggy.APIToken,
		}, logger),
		catalog,
		huggy.Routing{
			AutoDistributionFlow: cfg.Huggy.AutoDistributionFlow,
			AuthorizationFlow:    cfg.Huggy.AuthorizationFlow,
			ApprovedStep:         cfg.Huggy.ApprovedStep,
			Tabulations:          cfg.Huggy.Tabulations,
		},
		logger,
	)

	scheduler := bot.NewScheduler(queue, sessions, chat, logger)
	engine := bot.NewEngine(sessions, chat, offers, scheduler, logger)
	dispatcher := intake.NewDispatcher(engine, sessions, chat, intake.Filter{
		SenderType: cfg.Huggy.FilterSenderType,
		Department: cfg.Huggy.FilterDepartment,
		Situation:  cfg.Huggy.FilterSituation,
	}, logger)

	runner := worker.NewRunner(
		worker.New(queue, dispatcher, scheduler, cfg.Workers.TaskTimeout),
		logger,
	)
	if err := runner.Start(ctx, cfg.Workers.Concurrency); err != nil {
		return err
	}
	defer runner.Stop()

	mux := http.NewServeMux()
	mux.Handle("/webhook", intake.NewWebhookHandler(queue, logger))
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Int("workers", cfg.Workers.Concurrency),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", slog.String("error", err.Error()))
	}

	runner.Stop()
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
