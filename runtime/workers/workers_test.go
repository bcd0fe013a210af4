package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"planning-poker/observability"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHTTPServerWorker_Serves_Until_Canceled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server := &http.Server{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}),
	}
	worker := NewHTTPServerWorker(log, server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Given the server is listening
	addr := <-worker.Listening()
	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal("pong", string(body))

	// When the context is canceled
	cancel()

	// Then the worker returns cleanly
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("HTTP worker should stop on cancel")
	}
}

func TestHTTPServerWorker_Fails_On_Busy_Port(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	first := NewHTTPServerWorker(log, &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Run(ctx) }()
	addr := <-first.Listening()

	second := NewHTTPServerWorker(log, &http.Server{Addr: addr.String(), Handler: http.NotFoundHandler()}, time.Second)
	req.Error(second.Run(ctx))
}

func TestHeartbeatWorker_Refreshes_Stats(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log, func() int { return 4 })
	monitoring.IncrApplied()
	worker := NewHeartbeatWorker(log, monitoring, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req.NoError(worker.Run(ctx))

	stats := monitoring.GetLatest()
	req.Equal(4, stats.Connections)
	req.Equal(uint64(1), stats.CommandsApplied)
}

func TestBadgerGCWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	worker := NewBadgerGCWorker(logs.GetLoggerFromLevel(slog.LevelDebug), db, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Nothing to collect on an empty store
	req.NoError(worker.Run(ctx))
}
