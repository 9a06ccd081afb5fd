package security

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/constants"
	"github.com/msy-int/msy-api/internal/status"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limiters *cache.Cache
	config   config.RateLimitConfig
	clock    status.Clock
	logger   *zap.Logger
	trusted  []netip.Prefix

	stop     chan struct{}
	stopOnce sync.Once
}

// RateLimitStatus describes a client's bucket after a request.
type RateLimitStatus struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Time     `json:"reset"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

func NewRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = constants.RateLimitMaxCacheSize
	}

	rl := newRateLimiter(cfg, status.RealClock{}, logger)
	if cfg.Enabled {
		go rl.periodicCleanup()
	}
	return rl
}

func newRateLimiter(cfg config.RateLimitConfig, clock status.Clock, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}

	// Validate has already rejected malformed entries.
	trusted, err := cfg.TrustedPrefixes()
	if err != nil {
		logger.Warn("Ignoring trusted proxies", zap.Error(err))
		trusted = nil
	}

	return &RateLimiter{
		limiters: cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:   cfg,
		clock:    clock,
		logger:   logger,
		trusted:  trusted,
		stop:     make(chan struct{}),
	}
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// periodicCleanup caps the number of tracked clients. go-cache expires idle
// entries on its own; this only handles bursts of distinct addresses.
func (rl *RateLimiter) periodicCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictOverflow()
		}
	}
}

func (rl *RateLimiter) evictOverflow() {
	maxSize := rl.config.MaxCacheSize
	currentSize := rl.limiters.ItemCount()
	if currentSize <= maxSize {
		return
	}

	// Remove an extra 10% to avoid evicting on every tick.
	toRemove := currentSize - maxSize + maxSize/10

	// Map iteration order is random, which is all the fairness needed here.
	removed := 0
	for key := range rl.limiters.Items() {
		if removed >= toRemove {
			break
		}
		rl.limiters.Delete(key)
		removed++
	}

	rl.logger.Debug("Evicted rate limit entries",
		zap.Int("removed", removed),
		zap.Int("remaining", rl.limiters.ItemCount()),
	)
}

func (rl *RateLimiter) limiterFor(identifier string) *rate.Limiter {
	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	rl.limiters.Set(identifier, limiter, cache.DefaultExpiration)
	return limiter
}

// Allow consumes one token for identifier and returns the bucket status.
func (rl *RateLimiter) Allow(identifier string) (bool, RateLimitStatus) {
	now := rl.clock.Now()
	limiter := rl.limiterFor(identifier)
	allowed := limiter.AllowN(now, 1)

	tokens := limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	rps := float64(rl.config.RequestsPerSecond)
	burst := float64(rl.config.BurstSize)

	st := RateLimitStatus{
		Limit:     rl.config.BurstSize,
		Remaining: int(math.Floor(tokens)),
		Reset:     now.Add(secondsToDuration((burst - tokens) / rps)),
	}
	if !allowed {
		retry := math.Ceil((1 - tokens) / rps)
		if retry < 1 {
			retry = 1
		}
		st.RetryAfter = time.Duration(retry) * time.Second
	}
	return allowed, st
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Ceil(s)) * time.Second
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled || shouldSkipRateLimit(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identifier := "ip:" + ClientIP(r, rl.trusted)
		allowed, st := rl.Allow(identifier)

		w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(st.Limit))
		w.Header().Set(constants.HeaderXRateLimitRemaining, strconv.Itoa(st.Remaining))
		w.Header().Set(constants.HeaderXRateLimitReset, strconv.FormatInt(st.Reset.Unix(), 10))

		if !allowed {
			retrySeconds := int(st.RetryAfter.Seconds())
			w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retrySeconds))
			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.WriteHeader(http.StatusTooManyRequests)

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":       constants.ErrorCodeRateLimitExceeded,
				"message":     fmt.Sprintf("Rate limit exceeded. Try again in %v", st.RetryAfter),
				"retry_after": retrySeconds,
			})

			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", identifier),
				zap.String("path", r.URL.Path),
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the originating client address. X-Forwarded-For and
// X-Real-IP are honoured only when the direct peer is inside one of the
// trusted prefixes; otherwise any client could pick its own bucket.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if !fromTrustedProxy(host, trusted) {
		return host
	}

	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get(constants.HeaderXRealIP)); xri != "" {
		return xri
	}

	return host
}

func fromTrustedProxy(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func shouldSkipRateLimit(path string) bool {
	switch path {
	case constants.PathHealth, constants.PathReady, constants.PathMetrics:
		return true
	}
	return false
}
