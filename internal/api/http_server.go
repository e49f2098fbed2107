package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"coachplanner/internal/config"
	"coachplanner/internal/domain"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
)

// agendaRangeDays is the default span of agenda queries without a "to".
const agendaRangeDays = 30

type AgendaExporter interface {
	ExportCoachAgenda(entries []*models.AgendaEntry, from, to time.Time) (*bytes.Buffer, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the operations the HTTP API exposes.
type Services struct {
	Auth         domain.AuthService
	Availability domain.AvailabilityService
	Booking      domain.BookingService
	Directory    domain.DirectoryService
	Exporter     AgendaExporter
	Health       Pinger
}

// HTTPServer is the JSON API used by web and mobile clients.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	baseURL string
	loc     *time.Location
	now     func() time.Time
	limiter *rateLimiter
	proxies []netip.Prefix
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, baseURL string, loc *time.Location, svc Services, logger *zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Error().Err(err).Msg("ignoring trusted proxies")
		proxies = nil
	}
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		baseURL: baseURL,
		loc:     loc,
		now:     time.Now,
		limiter: newRateLimiter(cfg.RateLimit),
		proxies: proxies,
		logger:  logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", counted("register", s.handleRegister))
	mux.HandleFunc("POST /api/v1/auth/login", counted("login", s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", counted("logout", s.handleLogout))

	mux.HandleFunc("GET /api/v1/coaches", counted("coaches", s.requireSession(s.handleCoaches)))
	mux.HandleFunc("GET /api/v1/trainings", counted("trainings", s.requireSession(s.handleTrainings)))
	mux.HandleFunc("GET /api/v1/coaches/{id}/slots", counted("slots", s.requireSession(s.handleSlots)))

	mux.HandleFunc("POST /api/v1/appointments", counted("book", s.requireSession(s.handleBook)))
	mux.HandleFunc("GET /api/v1/appointments", counted("appointments", s.requireSession(s.handleClientAppointments)))
	mux.HandleFunc("GET /api/v1/agenda", counted("agenda", s.requireSession(s.handleAgenda)))
	mux.HandleFunc("GET /api/v1/agenda/export", counted("agenda_export", s.requireSession(s.handleAgendaExport)))

	mux.HandleFunc("GET /manage/{token}", counted("manage", s.handleManage))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return loggingMiddleware(s.logger, s.proxies, s.rateLimitMiddleware(mux))
}

// Handler exposes the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// SetClock replaces the time source used for default date ranges.
func (s *HTTPServer) SetClock(now func() time.Time) {
	s.now = now
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(lis)
}

func (s *HTTPServer) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP API listening")
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.Ping(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
