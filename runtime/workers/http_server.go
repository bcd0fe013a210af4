package workers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerWorker serves HTTP until its context is canceled, then shuts
// the server down gracefully.
type HTTPServerWorker struct {
	log             *slog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
	listening       chan net.Addr
}

func NewHTTPServerWorker(log *slog.Logger, server *http.Server, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{
		log:             log,
		server:          server,
		shutdownTimeout: shutdownTimeout,
		listening:       make(chan net.Addr, 1),
	}
}

// Listening yields the bound address once the listener is open.
func (w *HTTPServerWorker) Listening() <-chan net.Addr {
	return w.listening
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return err
	}
	w.log.Info("HTTP server listening", "addr", listener.Addr().String())
	select {
	case w.listening <- listener.Addr():
	default:
	}

	served := make(chan error, 1)
	go func() {
		served <- w.server.Serve(listener)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
		defer cancel()
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.log.Warn("HTTP server shutdown incomplete", "error", err)
		}
		<-served
		w.log.Info("HTTP server stopped")
		return nil
	}
}
