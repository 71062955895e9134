package telemetry

import (
	"context"
	"embed"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rjboer/GoRadar/internal/logging"
)

//go:embed static/*
var staticFiles embed.FS

// WebServer exposes acquisition history and live updates over HTTP.
type WebServer struct {
	srv *http.Server
	hub *Hub
	ln  net.Listener
}

// NewWebServer builds an HTTP server serving the embedded UI and the API.
func NewWebServer(addr string, hub *Hub) *WebServer {
	return &WebServer{
		hub: hub,
		srv: &http.Server{Addr: addr, Handler: hub.Handler()},
	}
}

// Handler routes the UI and API endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/static/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/live", h.handleLive)
	mux.HandleFunc("/api/ws", h.handleWebSocket)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/config", h.handleGetConfig)
	mux.HandleFunc("/api/config/update", h.handleSetConfig)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, staticFiles, "static/index.html")
	})
	return mux
}

// Listen binds the server address. It is split from Serve so callers can
// learn the bound port before advertising it.
func (w *WebServer) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", w.srv.Addr)
	if err != nil {
		return nil, err
	}
	w.ln = ln
	return ln.Addr(), nil
}

// Start serves until the context is canceled.
func (w *WebServer) Start(ctx context.Context) error {
	if w.ln == nil {
		if _, err := w.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.srv.Shutdown(shutdownCtx); err != nil {
			w.hub.logger.Warn("web telemetry shutdown", logging.Err(err))
		}
	}()

	if err := w.srv.Serve(w.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
