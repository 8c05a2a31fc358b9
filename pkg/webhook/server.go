// Package webhook exposes the HTTP surface: the Telegram update
// endpoint plus health, status, and metrics routes.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/parleybot/parley/internal/observability"
	"github.com/parleybot/parley/pkg/memory"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps inbound update payloads. Telegram updates are small;
// anything past this is not one.
const maxBodyBytes = 1 << 20

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Host               string
	Port               int
	RateLimitPerMinute int
}

// UpdateHandler consumes a raw webhook payload.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, body []byte) error
}

// StatusReporter describes the memory subsystem for the status route.
type StatusReporter interface {
	DescribeStatus(ctx context.Context) memory.StoreStatus
}

// Server is the webhook HTTP server.
type Server struct {
	options        ServerOptions
	server         *http.Server
	handler        UpdateHandler
	status         StatusReporter
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new webhook server.
func NewServer(options ServerOptions, handler UpdateHandler, status StatusReporter, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 5000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}

	if handler == nil {
		return nil, fmt.Errorf("update handler is required")
	}
	if status == nil {
		return nil, fmt.Errorf("status reporter is required")
	}

	return &Server{
		options:     options,
		handler:     handler,
		status:      status,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute),
		logger:      logger.With().Str("component", "webhook").Logger(),
		startTime:   time.Now(),
	}, nil
}

// Start starts the webhook server and blocks until it is shut down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleUpdate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Stop gracefully stops the webhook server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown webhook server: %w", err)
		}
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// handleUpdate handles Telegram update requests. The platform only
// cares that we answer 200; processing errors are logged and the body
// is still "ok" so Telegram does not redeliver the update.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	startTime := time.Now()
	requestID, _ := gonanoid.New(12)
	ip := s.getClientIP(r)

	if !s.rateLimiter.CheckLimit(ip) {
		retryAfter := s.rateLimiter.GetRetryAfter(ip)
		s.logger.Warn().
			Str("ip", ip).
			Str("request_id", requestID).
			Int("retry_after", retryAfter).
			Msg("Rate limit exceeded")

		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = s.handler.HandleUpdate(r.Context(), body)

	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("ip", ip).
			Str("request_id", requestID).
			Int64("duration", duration).
			Msg("Webhook update failed")
	} else {
		s.logger.Info().
			Str("ip", ip).
			Str("request_id", requestID).
			Int64("duration", duration).
			Msg("Webhook update completed")
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleStatus reports the state of the conversation memory backends.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.status.DescribeStatus(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// getClientIP extracts the client IP from the request.
func (s *Server) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
