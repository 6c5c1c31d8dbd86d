package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"whirl/auth"
	"whirl/contract"
	"whirl/infrastructure/api"
	"whirl/infrastructure/grpc/server"
	"whirl/infrastructure/websocket"
	"whirl/internal"
	"whirl/moderation"
	"whirl/observability"
	"whirl/repositories"
	"whirl/runtime"
	"whirl/runtime/workers"
	"whirl/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the server lifecycle, so deferred
// cleanups always execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLogger(repositories.NewBadgerLogger(log)))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewCollector(registry)

	// 4. Accounts & history
	tokens := auth.NewTokenIssuer(config.SessionSecret, config.SessionDuration)
	authService := services.NewAuthService(log, repositories.NewUserRepository(db), tokens)
	historyRepository := repositories.NewHistoryRepository(db, log)

	// 5. Protocol core
	opts := []runtime.Option{runtime.WithHistoryLimit(config.HistoryLimit)}
	moderator, err := newModerator(config, log)
	if err != nil {
		return err
	}
	if moderator != nil {
		opts = append(opts, runtime.WithModerator(moderator))
	}
	channels, err := config.DefaultChannelNames()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	connections := runtime.NewConnectionRegistry(log, metrics)
	directory := runtime.NewChannelDirectory(channels...)
	dispatcher := runtime.NewDispatcher(log, connections, directory, historyRepository, authService, metrics, opts...)

	// 6. Transport
	wsHandler := websocket.NewHandler(log, dispatcher, websocket.Config{
		AllowedOrigins:     internal.SplitList(config.AllowedOrigins),
		SessionCookie:      config.SessionCookie,
		SendBufferSize:     config.SendBufferSize,
		MaxFrameSize:       config.MaxFrameSize,
		RateLimitPerSecond: config.RateLimitPerSecond,
		RateLimitBurst:     config.RateLimitBurst,
	})
	router := api.NewRouter(api.RouterDeps{
		Log:        log,
		Websocket:  wsHandler,
		Auth:       authService,
		AuthConfig: api.AuthHandlerConfig{CookieName: config.SessionCookie},
		Gatherer:   registry,
	})
	httpServer := api.NewServer(config.Addr(), router)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(log, metrics, connections, config.HeartbeatInterval))
	var health *server.HealthServer
	if config.GrpcHealthPort > 0 {
		health = server.NewHealthServer(log, fmt.Sprintf("%s:%d", config.Host, config.GrpcHealthPort))
		sup.Add(health)
	}
	supervised := startSupervisor(ctx, sup)

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
	}

	// 10. Final Cleanup
	if health != nil {
		health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	closed := connections.CloseAll()
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		log.Warn("Websocket pumps still running", "error", err)
	}
	stop()
	sup.Stop()
	<-supervised
	log.Info("Program stopped cleanly", "connections_closed", closed)

	return runErr
}

func newModerator(config internal.Config, log *slog.Logger) (contract.IModerator, error) {
	words, err := moderation.LoadWords(config.CensoredWordsFile)
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	if len(words) == 0 && !config.SanitizeHTML {
		return nil, nil
	}
	char, err := internal.CharacterRune(config.CensorCharacter)
	if err != nil {
		return nil, err
	}
	var opts []moderation.Option
	if config.SanitizeHTML {
		opts = append(opts, moderation.WithHTMLSanitizer())
	}
	moderator, err := moderation.NewModerator(words, char, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}
	log.Info("Moderation enabled", "words", len(words), "sanitize_html", config.SanitizeHTML)
	return moderator, nil
}

func startSupervisor(ctx context.Context, sup *workers.Supervisor) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()
	return done
}
