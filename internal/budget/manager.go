// Package budget 维护调用方的 token 配额。
//
// 匿名用户按自然日计，注册用户按自然月计。周期切换在读取或扣减时惰性完成，
// 不需要定时任务。状态只保存在内存中，进程重启即清零。
package budget

import (
	"time"

	"mentor/internal/model"
	"mentor/internal/pkg/keyed"
)

const (
	// ResetMidnight 匿名用户的重置提示
	ResetMidnight = "midnight"
	// ResetNextMonth 注册用户的重置提示
	ResetNextMonth = "next_month"
)

// Limits 各类别的额度
type Limits struct {
	Anonymous  int
	Registered int
}

type state struct {
	used        int
	periodStart time.Time
}

// rollover 周期切换：新周期清零，否则原样返回
func rollover(s state, kind model.IdentityKind, now time.Time) state {
	if s.periodStart.IsZero() || !samePeriod(s.periodStart, now, kind) {
		return state{used: 0, periodStart: now}
	}
	return s
}

func samePeriod(a, b time.Time, kind model.IdentityKind) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if kind == model.IdentityRegistered {
		return ay == by && am == bm
	}
	return ay == by && am == bm && ad == bd
}

// Usage 某个调用方当前的配额情况
type Usage struct {
	Used      int    `json:"tokens_used"`
	Limit     int    `json:"tokens_limit"`
	Remaining int    `json:"tokens_remaining"`
	ResetTime string `json:"reset_time"`
}

// Manager token 配额管理器
type Manager struct {
	limits Limits
	now    func() time.Time
	state  *keyed.Store[state]
}

// Option 配额管理器选项
type Option func(*Manager)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager 创建配额管理器
func NewManager(limits Limits, opts ...Option) *Manager {
	m := &Manager{
		limits: limits,
		now:    time.Now,
		state:  keyed.New[state](nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limit 身份所属类别的额度
func (m *Manager) Limit(id model.Identity) int {
	if id.IsRegistered() {
		return m.limits.Registered
	}
	return m.limits.Anonymous
}

// current 在 key 锁内完成周期切换后执行 fn
func (m *Manager) current(id model.Identity, fn func(s *state)) {
	m.state.With(id.Key(), func(s *state) {
		*s = rollover(*s, id.Kind, m.now())
		fn(s)
	})
}

// Used 当前周期已用量
func (m *Manager) Used(id model.Identity) int {
	var used int
	m.current(id, func(s *state) { used = s.used })
	return used
}

// Remaining 剩余额度，不小于 0
func (m *Manager) Remaining(id model.Identity) int {
	return max(0, m.Limit(id)-m.Used(id))
}

// WouldExceed used + amount 是否超过额度
func (m *Manager) WouldExceed(id model.Identity, amount int) bool {
	limit := m.Limit(id)
	var exceed bool
	m.current(id, func(s *state) { exceed = s.used+amount > limit })
	return exceed
}

// Debit 扣减 amount，返回扣减后的用量
func (m *Manager) Debit(id model.Identity, amount int) int {
	var used int
	m.current(id, func(s *state) {
		s.used += amount
		used = s.used
	})
	return used
}

// Admit 请求前的配额检查
//
// 注册用户只要已用量未达额度即放行；匿名用户要求已用量加本次估算不超过额度。
func (m *Manager) Admit(id model.Identity, estimate int) (Usage, bool) {
	limit := m.Limit(id)
	var used int
	m.current(id, func(s *state) { used = s.used })

	ok := used < limit
	if !id.IsRegistered() {
		ok = used+estimate <= limit
	}
	return m.usage(id, used), ok
}

// Snapshot 当前配额情况
func (m *Manager) Snapshot(id model.Identity) Usage {
	return m.usage(id, m.Used(id))
}

func (m *Manager) usage(id model.Identity, used int) Usage {
	limit := m.Limit(id)
	reset := ResetMidnight
	if id.IsRegistered() {
		reset = ResetNextMonth
	}
	return Usage{
		Used:      used,
		Limit:     limit,
		Remaining: max(0, limit-used),
		ResetTime: reset,
	}
}

// Tracked 跟踪中的身份数
func (m *Manager) Tracked() int {
	return m.state.Len()
}
