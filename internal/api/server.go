package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/tvbridge/internal/broker"
	"github.com/bc-dunia/tvbridge/internal/otel"
	"github.com/bc-dunia/tvbridge/internal/session"
)

// Server is the HTTP surface of the broker. One instance owns the relay,
// liveness tracker, function registry and session store for exactly one
// device.
type Server struct {
	relay    *broker.Relay
	liveness *broker.LivenessTracker
	registry *broker.FunctionRegistry
	timing   *broker.TimingTracker
	clock    *broker.Clock
	sessions *session.Store

	publicDir string
	tracer    *otel.Tracer

	server    *http.Server
	listener  net.Listener
	mu        sync.Mutex
	running   bool
	addr      string
	startedAt time.Time
}

// Deps bundles the broker components a Server serves.
type Deps struct {
	Relay     *broker.Relay
	Liveness  *broker.LivenessTracker
	Registry  *broker.FunctionRegistry
	Timing    *broker.TimingTracker
	Clock     *broker.Clock
	Sessions  *session.Store
	PublicDir string
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		relay:     deps.Relay,
		liveness:  deps.Liveness,
		registry:  deps.Registry,
		timing:    deps.Timing,
		clock:     deps.Clock,
		sessions:  deps.Sessions,
		publicDir: deps.PublicDir,
		addr:      addr,
	}
}

// SetTracer installs the OTel tracer whose middleware wraps all routes.
// Must be called before Start.
func (s *Server) SetTracer(t *otel.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = t
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/functions", s.cors(s.handleFunctions))
	mux.HandleFunc("/api/keepalive", s.cors(s.handleKeepAlive))
	mux.HandleFunc("/api/save-to-public", s.cors(s.handleSaveToPublic))
	mux.HandleFunc("/api/remote-command", s.cors(s.handleRemoteCommand))
	mux.HandleFunc("/api/remote-command-batch", s.cors(s.handleRemoteCommandBatch))
	mux.HandleFunc("/api/execute-response", s.cors(s.handlePostResult))
	mux.HandleFunc("/api/execute-response/", s.cors(s.handleDrainResult))
	mux.HandleFunc("/api/scan/session/save", s.cors(s.handleSessionSave))
	mux.HandleFunc("/api/scan/sessions", s.cors(s.handleSessionList))
	mux.HandleFunc("/api/scan/session/load/", s.cors(s.handleSessionLoad))
	mux.HandleFunc("/api/scan/session/resume/", s.cors(s.handleSessionResume))
	mux.HandleFunc("/api/scan/session/delete/", s.cors(s.handleSessionDelete))
	mux.HandleFunc("/api/status", s.cors(s.handleStatus))
	mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir(s.publicDir))))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	var handler http.Handler = mux
	if s.tracer != nil {
		handler = otel.Middleware(s.tracer)(handler)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second, // Protect against slowloris attacks
	}

	s.running = true
	s.startedAt = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("server error: %v\n", err)
		}
	}()

	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

// IsRunning reports whether the server has been started.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// cors wraps a handler with the permissive CORS policy the embedded
// runtime needs: all origins, preflight answered with an empty 200.
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// clientIP extracts the caller address, honoring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// StartTestServer creates a started server on a loopback port and
// returns it with a cleanup function.
func StartTestServer(deps Deps) (*Server, func(), error) {
	server := NewServer("127.0.0.1:0", deps)
	if err := server.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start test server: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	return server, cleanup, nil
}
