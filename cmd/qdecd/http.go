package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ============================================================================
// HTTP API
// ============================================================================
//   GET  /healthz                     liveness
//   GET  /api/state                   state snapshot
//   POST /api/encoders/{name}/read    read and reset one encoder
//   GET  /ws                          state WebSocket
// ============================================================================

type apiError struct {
	Error string `json:"error"`
}

// newRouter builds the HTTP routes. ws may be nil to omit the WebSocket.
func newRouter(events chan<- Event, ws *StateServer, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		snap, err := requestSnapshot(req.Context(), events)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, apiError{Error: err.Error()}, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap, logger)
	}).Methods(http.MethodGet)

	api.HandleFunc("/encoders/{name}/read", func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]
		res, err := requestRead(req.Context(), events, name, "http")
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res, logger)
		case res.Error == errUnknownEncoder.Error():
			writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()}, logger)
		default:
			writeJSON(w, http.StatusServiceUnavailable, apiError{Error: err.Error()}, logger)
		}
	}).Methods(http.MethodPost)

	if ws != nil {
		ws.Register(r, "/ws")
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("http write failed", "error", err)
	}
}

// runHTTPServer serves handler on addr and shuts it down gracefully when ctx
// is canceled.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("HTTP listen on %s: %w", addr, err)
	}
	return serveHTTP(ctx, ln, handler, logger)
}

func serveHTTP(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("HTTP listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
