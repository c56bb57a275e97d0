package middleware

import (
	"net/http"
	"reserva/pkg/logger"
	"sync"
	"time"
)

// ResidentExtractor resolves the rate-limit key for a request. The default
// reads the resident id header populated by the auth gateway.
type ResidentExtractor func(r *http.Request) string

type ResidentRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor ResidentExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewResidentRateLimiter(limit int, window time.Duration, extractor ResidentExtractor, log *logger.Logger) *ResidentRateLimiter {
	limiter := &ResidentRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *ResidentRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for resident, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, resident)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ResidentRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *ResidentRateLimiter) Allow(resident string) bool {
	if resident == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := make([]time.Time, 0, len(rl.requests[resident]))
	for _, ts := range rl.requests[resident] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[resident] = valid
		return false
	}

	rl.requests[resident] = append(valid, now)
	return true
}

func ResidentRateLimit(limiter *ResidentRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resident := extractResident(r, limiter.extractor)

			if resident == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(resident) {
				rejectRateLimited(w, limiter.log, r, resident)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractResident(r *http.Request, extractor ResidentExtractor) string {
	if extractor == nil {
		return r.Header.Get("X-Resident-ID")
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, resident string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		if id, ok := rid.(string); ok {
			requestID = id
		}
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"resident_id", resident,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultResidentExtractor(r *http.Request) string {
	return r.Header.Get("X-Resident-ID")
}
