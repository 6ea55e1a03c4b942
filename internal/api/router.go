// Package api exposes the renewal workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
	"github.com/tcdsagency/renewals/internal/store"
)

// Config controls the HTTP server.
type Config struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// ReadTimeoutSecs bounds request reads. Default: 15.
	ReadTimeoutSecs int `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
}

// Reader is the read side the handlers query directly.
type Reader interface {
	Load(ctx context.Context, id string) (*model.Record, error)
	ListRecords(ctx context.Context, filter store.RecordFilter) ([]model.Record, error)
	History(ctx context.Context, recordID string) ([]model.AuditEvent, error)
	Ping(ctx context.Context) error
}

type server struct {
	svc    *renewal.Service
	reader Reader
	log    *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(svc *renewal.Service, reader Reader, cfg Config) http.Handler {
	s := &server{
		svc:    svc,
		reader: reader,
		log:    zap.L().With(zap.String("component", "api")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", actorHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/renewals", func(r chi.Router) {
		r.Get("/", s.listRenewals)
		r.Post("/", s.ingestRenewal)
		r.Post("/expiring", s.ingestExpiring)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getRenewal)
			r.Get("/history", s.history)
			r.Post("/compare", s.compare)
			r.Post("/decision", s.decide)
			r.Post("/resolve", s.resolve)
			r.Post("/quote-ready", s.quoteReady)
			r.Post("/complete", s.complete)
			r.Post("/cancel", s.cancel)
		})
	})
	return r
}

// NewServer wraps the router in an http.Server on the configured port.
func NewServer(handler http.Handler, cfg Config) *http.Server {
	read := time.Duration(cfg.ReadTimeoutSecs) * time.Second
	if read <= 0 {
		read = 15 * time.Second
	}
	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.reader.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
