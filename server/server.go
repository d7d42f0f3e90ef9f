package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/examdigest/pkg/classifier"
	"github.com/umputun/examdigest/pkg/delivery"
	"github.com/umputun/examdigest/pkg/domain"
	"github.com/umputun/examdigest/pkg/ingest"
)

// Server exposes the pipeline triggers and subscription management over HTTP
type Server struct {
	config       ConfigProvider
	fetcher      Fetcher
	classifier   Classifier
	dispatcher   Dispatcher
	subscribers  SubscriberStore
	examRequests ExamRequestStore
	version      string
	debug        bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Fetcher runs one ingestion pass
type Fetcher interface {
	Run(ctx context.Context) ingest.Result
}

// Classifier runs one classification pass
type Classifier interface {
	Run(ctx context.Context, sel classifier.Selection) (classifier.Result, error)
}

// Dispatcher runs digest delivery and welcome mail
type Dispatcher interface {
	Run(ctx context.Context, opts delivery.RunOptions) (delivery.Result, error)
	SendWelcome(ctx context.Context, sub *domain.Subscriber) error
}

// SubscriberStore manages subscriptions
type SubscriberStore interface {
	Upsert(ctx context.Context, email string, exams []string) (*domain.Subscriber, bool, error)
	Deactivate(ctx context.Context, email string) error
}

// ExamRequestStore records exam coverage requests
type ExamRequestStore interface {
	Add(ctx context.Context, req *domain.ExamRequest) error
}

// New initializes a new server instance
func New(cfg ConfigProvider, fetcher Fetcher, cls Classifier, dispatcher Dispatcher,
	subscribers SubscriberStore, examRequests ExamRequestStore, version string, debug bool) *Server {
	s := &Server{
		config:       cfg,
		fetcher:      fetcher,
		classifier:   cls,
		dispatcher:   dispatcher,
		subscribers:  subscribers,
		examRequests: examRequests,
		version:      version,
		debug:        debug,
		router:       routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("examdigest", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // 64K, requests here are small
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		// pipeline triggers
		r.HandleFunc("POST /fetch", s.fetchHandler)
		r.HandleFunc("POST /classify", s.classifyHandler)
		r.HandleFunc("POST /digest", s.digestHandler)

		// subscription management; unsubscribe accepts GET for email links
		r.HandleFunc("POST /subscribe", s.subscribeHandler)
		r.HandleFunc("POST /unsubscribe", s.unsubscribeHandler)
		r.HandleFunc("GET /unsubscribe", s.unsubscribeHandler)
		r.HandleFunc("POST /exam-request", s.examRequestHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
