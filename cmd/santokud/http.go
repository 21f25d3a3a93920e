package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Serves the display page, the state websocket and a JSON snapshot endpoint:
//   GET /          embedded OLED page
//   GET /ws/state  state websocket (state_init, state_changed, alt_tab_changed)
//   GET /api/state current StateSnapshot as JSON
// ============================================================================

//go:embed web/index.html
var displayPage []byte

// newHTTPMux wires the display routes onto a fresh mux.
func newHTTPMux(state *StateServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/state", state.handleStateWS)
	mux.HandleFunc("/api/state", state.handleStateAPI)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(displayPage)
	})
	return mux
}

// displayURL returns the browser URL for a listen address such as ":3010".
func displayURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// runHTTPServer serves handler on listen and shuts it down gracefully when
// ctx is canceled. If ready is non-nil it is closed once the socket is bound.
func runHTTPServer(ctx context.Context, listen string, handler http.Handler, ready chan<- struct{}, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}
	logger.Info("HTTP server listening", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
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
