package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/webinspect/internal/api/middleware"
	"github.com/khanhnv2901/webinspect/internal/inspect"
	"github.com/khanhnv2901/webinspect/internal/shared/constants"
	errs "github.com/khanhnv2901/webinspect/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// InspectService runs the three inspections. *inspect.Inspector satisfies it.
type InspectService interface {
	Status(ctx context.Context, rawURL string, opts inspect.Options) *inspect.Future[inspect.StatusResult]
	TLS(ctx context.Context, rawURL string, opts inspect.Options) *inspect.Future[inspect.TLSResult]
	Meta(ctx context.Context, rawURL string, opts inspect.Options) *inspect.Future[inspect.MetaResult]
}

// InspectRequest is the POST body accepted by the inspection endpoints.
type InspectRequest struct {
	URL     string          `json:"url"`
	Options inspect.Options `json:"options,omitempty"`
}

type Config struct {
	Inspector   InspectService
	Version     string
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For header is
	// honored. Empty means the header is ignored.
	TrustedProxies []string
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
	proxies  []netip.Prefix
}

// NewServer builds the handler and starts the rate limiter cleanup loop.
// Call Close to stop it. Unparseable TrustedProxies entries are logged and
// skipped.
func NewServer(cfg Config) *Server {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(rateLimiterCleanupInterval),
	}
	for _, entry := range cfg.TrustedProxies {
		prefix, err := parseProxyPrefix(entry)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("invalid_trusted_proxy", zap.String("entry", entry), zap.Error(err))
			}
			continue
		}
		srv.proxies = append(srv.proxies, prefix)
	}
	srv.routes()
	return srv
}

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() {
	s.limiters.stop()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Apply middleware chain: RequestID -> Logging -> RateLimit -> CORS -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	for _, prefix := range []string{"/api/v1", "/api"} {
		s.mux.Handle(prefix+"/health", http.HandlerFunc(s.handleHealth))
		s.mux.Handle(prefix+"/status", s.withAuth(http.HandlerFunc(s.handleStatus)))
		s.mux.Handle(prefix+"/tls", s.withAuth(http.HandlerFunc(s.handleTLS)))
		s.mux.Handle(prefix+"/meta", s.withAuth(http.HandlerFunc(s.handleMeta)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	payload := map[string]string{"status": "ok"}
	if s.cfg.Version != "" {
		payload["version"] = s.cfg.Version
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.inspectorAvailable(w, r) {
		return
	}
	serveInspection[inspect.StatusResult](s, w, r, "status", s.cfg.Inspector.Status)
}

func (s *Server) handleTLS(w http.ResponseWriter, r *http.Request) {
	if !s.inspectorAvailable(w, r) {
		return
	}
	serveInspection[inspect.TLSResult](s, w, r, "tls", s.cfg.Inspector.TLS)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if !s.inspectorAvailable(w, r) {
		return
	}
	serveInspection[inspect.MetaResult](s, w, r, "meta", s.cfg.Inspector.Meta)
}

func (s *Server) inspectorAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Inspector == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("inspection service not available"))
		return false
	}
	return true
}

type inspectFunc[T any] func(ctx context.Context, rawURL string, opts inspect.Options) *inspect.Future[T]

func serveInspection[T any](s *Server, w http.ResponseWriter, r *http.Request, op string, run inspectFunc[T]) {
	var req InspectRequest
	switch r.Method {
	case http.MethodGet:
		req = inspectRequestFromQuery(r)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxAPIRequestBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	default:
		s.methodNotAllowed(w, r)
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, http.StatusBadRequest, errs.ErrMissingURL)
		return
	}

	result, err := run(r.Context(), req.URL, req.Options).Await(r.Context())
	if err != nil {
		// Inspection failures are upstream problems, not server faults: the
		// message is returned as-is.
		s.requestLogger(r).Warn("inspection_failed",
			zap.String("op", op),
			zap.String("target", req.URL),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// inspectRequestFromQuery maps ?url=&method=&path=&servername=&insecure=&timeout=
// onto an InspectRequest.
func inspectRequestFromQuery(r *http.Request) InspectRequest {
	q := r.URL.Query()
	req := InspectRequest{URL: q.Get("url"), Options: inspect.Options{}}

	for _, key := range []string{"method", "path", "servername", "timeout"} {
		if v := q.Get(key); v != "" {
			req.Options[key] = v
		}
	}
	if v := q.Get("insecure"); v != "" {
		if insecure, err := strconv.ParseBool(v); err == nil {
			req.Options["rejectUnauthorized"] = !insecure
		}
	}
	return req
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting if disabled
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := s.clientIP(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)

		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded",
				zap.String("client_ip", clientIP),
			)
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the peer address, or, when the peer is a trusted proxy,
// the right-most X-Forwarded-For hop that is not itself a trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	clientIP := remoteHost(r.RemoteAddr)
	if !s.isTrustedProxy(clientIP) {
		return clientIP
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := remoteHost(strings.TrimSpace(hops[i]))
		if hop == "" {
			continue
		}
		if !s.isTrustedProxy(hop) {
			return hop
		}
		clientIP = hop
	}
	return clientIP
}

func (s *Server) isTrustedProxy(ip string) bool {
	if len(s.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range s.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteHost strips the port from host:port; other values are returned as is.
func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// parseProxyPrefix accepts a single IP or a CIDR.
func parseProxyPrefix(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowedOrigin := range s.cfg.CORSOrigins {
				if allowedOrigin == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", lrw.bytesWritten),
			)
		}
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}

	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// rateLimiterCleanupInterval is how often idle limiters are swept.
const rateLimiterCleanupInterval = time.Minute

// rateLimiterIdleTTL is how long an unused limiter is kept.
const rateLimiterIdleTTL = 5 * time.Minute

// rateLimiterMap manages per-IP rate limiters with automatic cleanup
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap(interval time.Duration) *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.cleanupLoop(interval)
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{
			limiter:  rate.NewLimiter(rate.Limit(rps), burst),
			lastSeen: time.Now(),
		}
		m.limiters[ip] = limiter
	} else {
		limiter.lastSeen = time.Now()
	}

	return limiter.limiter
}

// stop ends the cleanup loop and waits for it to return.
func (m *rateLimiterMap) stop() {
	m.stopOnce.Do(func() { close(m.quit) })
	<-m.done
}

// cleanupLoop removes limiters that have been idle longer than rateLimiterIdleTTL
func (m *rateLimiterMap) cleanupLoop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.evictIdle(time.Now())
		}
	}
}

func (m *rateLimiterMap) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ip, limiter := range m.limiters {
		if now.Sub(limiter.lastSeen) > rateLimiterIdleTTL {
			delete(m.limiters, ip)
		}
	}
}
