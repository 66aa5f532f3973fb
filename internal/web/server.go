package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/engine"
	"bot_dashboard/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Commands is the control surface the HTTP API drives.
type Commands interface {
	Toggle(ctx context.Context) error
	RequestStart(ctx context.Context) error
	RequestStop(ctx context.Context) error
	ManualScan(ctx context.Context) error
	SquareOff(ctx context.Context, confirmed bool) error
}

type Snapshotter interface {
	Snapshot() engine.Dashboard
}

type Notifications interface {
	Active() []models.Notification
}

type Deps struct {
	Commands      Commands
	View          Snapshotter
	Notifications Notifications
	Hub           *Hub
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	deps   Deps
	router *mux.Router
	server *http.Server
}

func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps, router: mux.NewRouter()}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	if s.deps.Hub != nil {
		s.router.HandleFunc("/ws", s.deps.Hub.ServeWs).Methods(http.MethodGet)
	}
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	api.Handle("/bot/toggle", guardCommand(s.command(s.deps.Commands.Toggle))).Methods(http.MethodPost)
	api.Handle("/bot/start", guardCommand(s.command(s.deps.Commands.RequestStart))).Methods(http.MethodPost)
	api.Handle("/bot/stop", guardCommand(s.command(s.deps.Commands.RequestStop))).Methods(http.MethodPost)
	api.Handle("/scan", guardCommand(s.command(s.deps.Commands.ManualScan))).Methods(http.MethodPost)
	api.Handle("/squareoff", guardCommand(http.HandlerFunc(s.handleSquareOff))).Methods(http.MethodPost)
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	log.Info().Msgf("🌐 Web server starting on http://localhost%s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("web server error")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down web server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.View.Snapshot())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.View.Snapshot().Chart)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	active := s.deps.Notifications.Active()
	if active == nil {
		active = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, active)
}

// guardCommand admits only JSON bodies from the dashboard's own origin, so a
// cross-site form or simple fetch cannot trigger a bot command.
func guardCommand(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			http.Error(w, "Cross-origin request rejected", http.StatusForbidden)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const commandTimeout = 30 * time.Second

// detach outlives the request so a client disconnect cannot abandon a stop or
// square-off halfway through.
func detach(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), commandTimeout)
}

func (s *Server) command(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := detach(r)
		defer cancel()
		s.reply(w, fn(ctx))
	}
}

func (s *Server) handleSquareOff(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ctx, cancel := detach(r)
	defer cancel()
	s.reply(w, s.deps.Commands.SquareOff(ctx, data.Confirm))
}

type commandResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
	Bot    string `json:"bot"`
}

func (s *Server) reply(w http.ResponseWriter, err error) {
	resp := commandResponse{Result: "ok", Bot: s.deps.View.Snapshot().Bot}
	if err != nil {
		resp.Result = "error"
		resp.Error = err.Error()
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrMarketClosed), errors.Is(err, engine.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, backend.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

type ctxKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		id, _ := r.Context().Value(ctxKey{}).(string)
		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
