// Package stub serves a canned stand-in for the AI-provider proxy, exposing
// the Anthropic and OpenAI routes the smoke test talks to.
package stub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout = 5 * time.Second
	readTimeout     = 30 * time.Second
	writeTimeout    = 30 * time.Second
)

// DefaultReply is the assistant text returned when Options.Reply is empty.
const DefaultReply = "Hello from the proxycheck stub. This reply never left your machine."

// Options controls the canned behaviour of the stub.
type Options struct {
	// Reply is the assistant text for every completion.
	Reply string
	// FailStatus, when non-zero, makes every provider route answer with this
	// status and a provider-shaped error body.
	FailStatus int
}

func (o Options) reply() string {
	if o.Reply == "" {
		return DefaultReply
	}
	return o.Reply
}

// Server is the stub proxy bound to a TCP address.
type Server struct {
	addr string
	opts Options

	mu     sync.Mutex
	server *http.Server
}

// New creates a stub server that will listen on addr.
func New(addr string, opts Options) *Server {
	return &Server{addr: addr, opts: opts}
}

// NewHandler returns the stub's router without binding a listener.
func NewHandler(opts Options) http.Handler {
	router := mux.NewRouter()
	setupRoutes(router, &handlers{opts: opts})
	return router
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	slog.Info("Stub proxy listening", "address", listener.Addr().String())

	server := &http.Server{
		Handler:      NewHandler(s.opts),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down stub proxy", "error", err)
	}
}

func setupRoutes(router *mux.Router, h *handlers) {
	router.HandleFunc("/anthropic/v1/messages", h.handleAnthropicMessages).Methods("POST")
	router.HandleFunc("/openai/v1/chat/completions", h.handleOpenAIChatCompletions).Methods("POST")
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
}
