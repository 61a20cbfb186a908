// Package ratelimit 按网络身份做滑动窗口限流。
//
// 超过阈值的身份会被永久封禁，直到进程重启。
package ratelimit

import (
	"time"

	"mentor/internal/pkg/keyed"
)

type hitWindow struct {
	hits    []time.Time
	blocked bool
}

// Limiter 滑动窗口限流器，封禁不会自动解除
type Limiter struct {
	window      time.Duration
	maxRequests int
	now         func() time.Time
	state       *keyed.Store[hitWindow]
}

// Option 限流器选项
type Option func(*Limiter)

// WithClock 替换时间源，测试使用
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New 创建限流器：window 内最多 maxRequests 次请求
func New(window time.Duration, maxRequests int, opts ...Option) *Limiter {
	l := &Limiter{
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
		state:       keyed.New[hitWindow](nil),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow 判断 key 本次请求是否放行
func (l *Limiter) Allow(key string) bool {
	allowed := false
	l.state.With(key, func(w *hitWindow) {
		now := l.now()

		// 1. 淘汰窗口外的记录
		i := 0
		for i < len(w.hits) && now.Sub(w.hits[i]) >= l.window {
			i++
		}
		w.hits = w.hits[i:]

		// 2. 已封禁
		if w.blocked {
			return
		}

		// 3. 达到阈值，封禁
		if len(w.hits) >= l.maxRequests {
			w.blocked = true
			return
		}

		w.hits = append(w.hits, now)
		allowed = true
	})
	return allowed
}

// Blocked 查询 key 是否已被封禁，未出现过的 key 不会被记录
func (l *Limiter) Blocked(key string) bool {
	blocked := false
	l.state.Peek(key, func(w hitWindow) { blocked = w.blocked })
	return blocked
}

// Stats 限流统计
type Stats struct {
	Tracked int `json:"active_rate_limits"`
	Blocked int `json:"blocked_ips"`
}

// Stats 返回跟踪中的 key 数与已封禁数
func (l *Limiter) Stats() Stats {
	s := Stats{}
	l.state.Range(func(_ string, w *hitWindow) bool {
		s.Tracked++
		if w.blocked {
			s.Blocked++
		}
		return true
	})
	return s
}
