package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/toricodesthings/visual-extraction-worker/internal/config"
	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/ocr"
	"github.com/toricodesthings/visual-extraction-worker/internal/orchestrator"
)

var (
	cfg    config.Config
	logger *zap.Logger
	valid  = validator.New(validator.WithRequiredStructEnabled())

	requestSem *semaphore.Weighted
	pipeline   *orchestrator.Pipeline

	limiters = &sync.Map{}

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}

func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}

func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

func main() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	l, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	logger = l
	defer logger.Sync()

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	ocr.SetConcurrencyLimit(cfg.MaxOCRConcurrent)

	tesseract := ocr.NewTesseractAdapter(cfg.TesseractBinary, cfg.TesseractTimeout)
	adapter := ocr.LimitedAdapter{Inner: tesseract}
	pipeline = orchestrator.New(cfg, logger, adapter)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/extract-visuals",
		withRateLimit(
			withMethod(http.MethodPost,
				withConcurrencyLimit(handleExtractVisuals))))

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(withRecovery(mux)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	go logStats()

	logger.Info("visual-extraction-worker listening",
		zap.String("addr", srv.Addr),
		zap.Int64("max_concurrent_requests", cfg.MaxConcurrentRequests),
		zap.Int64("max_ocr_concurrent", cfg.MaxOCRConcurrent))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server exited", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("server exited properly")
}

func logStats() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		total, active := metrics.get()
		logger.Info("stats", zap.Int64("active", active), zap.Int64("total", total))
	}
}

// ---------- Handlers ----------

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func handleExtractVisuals(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[model.ExtractVisualsRequest](r, cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	if err := valid.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	requestID := uuid.NewString()

	resp := pipeline.ExtractVisuals(r.Context(), req, requestID)
	writeJSON(w, http.StatusOK, resp)
}

// ---------- Middleware ----------

func withMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be "+method)
			return
		}
		next(w, r)
	}
}

func withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer requestSem.Release(1)

		metrics.incActive()
		defer metrics.decActive()

		next(w, r)
	}
}

func withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := getRateLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", zap.Any("panic", err))
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", sanitizeLogString(r.URL.Path)),
			zap.Int("status", ww.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ---------- Helpers ----------

func getRateLimiter(ip string) *rate.Limiter {
	if v, ok := limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := cfg.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	limiter := rate.NewLimiter(rate.Every(every), burst)
	limiters.Store(ip, limiter)
	return limiter
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}

	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}

	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
