package server

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/portfolio"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/snapshot"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const APIKeyHeader = "X-API-KEY"

type HTTPServer struct {
	s *http.Server
}

func NewHTTPServer(ctx context.Context, port string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		s: &http.Server{
			Handler:           handler,
			Addr:              ":" + port,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(listener net.Listener) context.Context {
				return ctx
			},
		},
	}
}

func (s *HTTPServer) Start() error {
	return s.s.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.s.Shutdown(ctx)
}

func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error)
	go func() {
		errCh <- s.Start()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type Deps struct {
	Ledger    *ledger.Service
	Registry  *registry.Service
	Portfolio *portfolio.Portfolio
	Snapshots *snapshot.Service
}

type Handler struct {
	ledger    *ledger.Service
	registry  *registry.Service
	portfolio *portfolio.Portfolio
	snapshots *snapshot.Service

	cfg    config.ServiceConfig
	apiKey string
	logger logger.Logger
	now    func() time.Time
}

// NewHandler builds the API handler. An empty apiKey disables authentication.
func NewHandler(deps Deps, cfg config.ServiceConfig, apiKey string, logger logger.Logger) *Handler {
	return &Handler{
		ledger:    deps.Ledger,
		registry:  deps.Registry,
		portfolio: deps.Portfolio,
		snapshots: deps.Snapshots,
		cfg:       cfg,
		apiKey:    apiKey,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Timeout(h.cfg.Server.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAPIKey)

		r.Route("/portfolio", func(r chi.Router) {
			r.Post("/trade", h.trade)
			r.Get("/holdings", h.holdings)
			r.Get("/transactions", h.transactions)
			r.Post("/rebaseline", h.rebaseline)
			r.Get("/verify", h.verify)
		})
		r.Route("/assets", func(r chi.Router) {
			r.Get("/overview", h.overview)
			r.Put("/cash", h.setCash)
			r.Get("/history", h.history)
			r.Post("/snapshots", h.createSnapshot)
			r.Post("/snapshots/capture", h.captureSnapshot)
		})
		r.Post("/performance/report", h.performanceReport)
	})

	return r
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(APIKeyHeader)), []byte(h.apiKey)) != 1 {
			h.writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "invalid or missing api key", Kind: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debugf("%s %s %d %s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
