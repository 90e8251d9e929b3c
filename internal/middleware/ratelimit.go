package middleware

import (
	"net/http"
	"sync"
	"time"

	"survey-map/internal/logger"
)

// 文档注释：令牌桶限流（每秒）
// 背景：中继入口的全局限速，保护上游调查服务不被突发流量压垮。
// 约束：不做排队，超额请求直接返回 429。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Options：中间件开关
type Options struct {
	RateLimitEnabled bool
	RateLimitQPS     int
}

// Wrap：CORS 预检在最外层应答，限流只作用于实际请求
func Wrap(next http.Handler, opts Options) http.Handler {
	h := next
	if opts.RateLimitEnabled {
		tb := NewTokenBucket(opts.RateLimitQPS)
		inner := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tb.allow() {
				logger.L().Debug("rate_limited", "path", r.URL.Path)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			inner.ServeHTTP(w, r)
		})
	}
	return CORS(h)
}
