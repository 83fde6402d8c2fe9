package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"podium/internal/config"
	"podium/internal/logging"
	"podium/internal/media"
	"podium/internal/notifications"
	"podium/internal/pipeline"
	"podium/internal/services"
	"podium/internal/session"
	"podium/internal/store"
)

// QuestionService generates interview questions for a topic.
type QuestionService interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]string, error)
}

// Server is the HTTP front end: upload, processing triggers, status polling
// and session views. A file lock in the data dir keeps it single-instance.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	media     *media.Store
	pipeline  *pipeline.Pipeline
	sessions  *session.Service
	questions QuestionService
	notifier  notifications.Service

	lockPath string
	lock     *flock.Flock
	listener net.Listener
	server   *http.Server
}

// Options wires the server's dependencies.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Media     *media.Store
	Pipeline  *pipeline.Pipeline
	Sessions  *session.Service
	Questions QuestionService
	Notifier  notifications.Service
}

// New validates the options and builds the server.
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Media == nil || opts.Pipeline == nil {
		return nil, services.Wrap(services.ErrConfiguration, "server", "init", "config, store, media and pipeline are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewService(opts.Store)
	}
	lockPath := filepath.Join(opts.Config.Paths.DataDir, "podium.lock")
	srv := &Server{
		cfg:       opts.Config,
		logger:    logger.With(logging.String(logging.FieldComponent, "api-server")),
		store:     opts.Store,
		media:     opts.Media,
		pipeline:  opts.Pipeline,
		sessions:  sessions,
		questions: opts.Questions,
		notifier:  opts.Notifier,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	srv.server = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	token := strings.TrimSpace(s.cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/recordings", authMiddleware(token, s.handleRecordings))
	mux.HandleFunc("/api/recordings/", authMiddleware(token, s.handleRecording))
	mux.HandleFunc("/api/sessions/", authMiddleware(token, s.handleSession))
	mux.HandleFunc("/api/questions", authMiddleware(token, s.handleQuestions))
	mux.HandleFunc("/api/references", authMiddleware(token, s.handleReferences))
	mux.HandleFunc("/api/health", authMiddleware(token, s.handleHealth))
	mux.HandleFunc("/api/notifications/test", authMiddleware(token, s.handleTestNotification))
	// Media access is authorized by the signed query, not the bearer token,
	// so external stage services can fetch uploads.
	mux.HandleFunc("/media/", s.handleMedia)
	return mux
}

// Start acquires the instance lock and begins serving until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return fmt.Errorf("server start: prepare lock dir: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("server start: acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "server", "start", "another instance holds "+s.lockPath, nil)
	}

	listener, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Paths.APIBind))
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("server start: listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and releases the instance lock.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("release instance lock", logging.Error(err))
		}
	}
}
