package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apierrors "github.com/pribylovaa/placenotes/internal/transport/http/errors"
	logctx "github.com/pribylovaa/placenotes/pkg/log"
)

// clientLimiter: лимитер клиента и время последнего обращения.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter ограничивает частоту запросов с одного IP.
// Давно не обращавшиеся клиенты удаляются фоновой очисткой.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter создаёт лимитер и запускает очистку раз в idle.
// rps <= 0 отключает ограничение.
func NewRateLimiter(rps float64, burst int, idle time.Duration) *RateLimiter {
	if idle <= 0 {
		idle = 5 * time.Minute
	}

	rl := &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	if rps > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// Stop останавливает фоновую очистку.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Len: число отслеживаемых клиентов.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware отвечает 429 с Retry-After, когда клиент превысил лимит.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if rl == nil || rl.rps <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.limiter(ip).Allow() {
				logctx.From(r.Context()).Warn("rate_limit_exceeded", slog.String("ip", ip))

				retry := int(math.Ceil(1.0 / float64(rl.rps)))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				apierrors.WriteError(w, r, status.Error(codes.ResourceExhausted, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = time.Now()

	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup удаляет клиентов, не обращавшихся дольше 2*idle.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > 2*rl.idle {
			delete(rl.limiters, key)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
