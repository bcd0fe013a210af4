package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planning-poker/auth"
	"planning-poker/domain"
	"planning-poker/engine"
	"planning-poker/infrastructure/api"
	"planning-poker/infrastructure/storage"
	"planning-poker/infrastructure/ws"
	"planning-poker/internal"
	"planning-poker/moderation"
	"planning-poker/observability"
	"planning-poker/runtime"
	"planning-poker/runtime/workers"
	"planning-poker/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal stops the server.
// Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	roomRepository := storage.NewRoomRepository(db, log, config.RoomTTL)
	userRepository := storage.NewUserRepository(db, log)

	// 3. Moderation
	moderator, err := newModerator(config, log)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Services
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	locks := runtime.NewKeyedMutex()
	roomService := services.NewRoomService(roomRepository, locks, moderator, log, config.MaxRoomsPerUser)

	// 5. Real-time path
	joinRole, _ := domain.ParseRole(config.DefaultJoinRole)
	dispatcher := runtime.NewDispatcher(
		roomRepository, runtime.NewRegistry(), engine.New(joinRole, moderator), locks, log,
		runtime.DispatcherConfig{StoreTimeout: config.StoreTimeout, SinkTimeout: config.SinkTimeout},
	)
	gateway := ws.NewGateway(authService, dispatcher, log, ws.Config{
		BufferSize:   config.ConnectionBufferSize,
		PingInterval: config.PingInterval,
		SinkTimeout:  config.SinkTimeout,
	})
	monitoring := observability.NewMonitoringManager(log, gateway.Connections)
	dispatcher.WithMonitoring(monitoring)

	// 6. HTTP surface
	router := api.NewRouter(config.GinMode, log, api.Handlers{
		Authenticator: authService,
		Auth:          api.NewAuthHandler(authService, config.AuthTokenDuration, config.SecureCookie),
		Rooms:         api.NewRoomHandler(roomService),
		Health:        api.NewHealthHandler(monitoring),
		Gateway:       gateway,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// hijacked connections are not closed by Shutdown
	server.RegisterOnShutdown(gateway.CloseAll)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, server, config.ShutdownTimeout),
		workers.NewHeartbeatWorker(log, monitoring, config.HeartbeatInterval),
		workers.NewBadgerGCWorker(log, db, config.BadgerGCInterval),
	)
	log.Info("Starting planning poker server", "addr", server.Addr, "at", time.Now().UTC())
	sup.Run(ctx)

	// leaves of closing connections must reach badger before it closes
	drainCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := gateway.Drain(drainCtx); err != nil {
		log.Warn("Connections still open at shutdown", "count", gateway.Connections(), "error", err)
	}

	log.Info("Program stopped cleanly")
	return nil
}

func newModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	loader := moderation.NewEmbeddedLoader()
	dir := moderation.DefaultDictionaryDir
	if config.CensoredDir != "" {
		loader = moderation.NewCensoredLoader(os.DirFS(config.CensoredDir))
		dir = "."
	}
	data, err := loader.LoadAll(dir)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	log.Info("Censored words loaded", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(data.Words, char, log)
}

