// Package keyed 提供按 key 加锁的内存状态表。
//
// 每个 key 的记录有独立互斥锁，同一 key 的并发更新串行执行，不同 key 互不阻塞。
// 全局锁只在查找或创建记录时短暂持有。
package keyed

import "sync"

type entry[V any] struct {
	mu    sync.Mutex
	value V
}

// Store 以 key 隔离的并发安全状态表
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	init    func() V
}

// New 创建状态表，init 用于首次见到某个 key 时生成初始值
func New[V any](init func() V) *Store[V] {
	return &Store[V]{
		entries: make(map[string]*entry[V]),
		init:    init,
	}
}

func (s *Store[V]) get(key string) *entry[V] {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[key]; ok {
		return e
	}
	e = &entry[V]{}
	if s.init != nil {
		e.value = s.init()
	}
	s.entries[key] = e
	return e
}

// With 在 key 的锁内执行 fn，fn 可原地修改记录
func (s *Store[V]) With(key string, fn func(v *V)) {
	e := s.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.value)
}

// Peek 在 key 的锁内只读访问记录，key 不存在时不创建，返回 false
func (s *Store[V]) Peek(key string, fn func(v V)) bool {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.value)
	return true
}

// Len 已跟踪的 key 数量
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Range 依次在各 key 的锁内调用 fn，fn 返回 false 时停止
func (s *Store[V]) Range(fn func(key string, v *V) bool) {
	s.mu.RLock()
	snapshot := make(map[string]*entry[V], len(s.entries))
	for k, e := range s.entries {
		snapshot[k] = e
	}
	s.mu.RUnlock()

	for k, e := range snapshot {
		e.mu.Lock()
		cont := fn(k, &e.value)
		e.mu.Unlock()
		if !cont {
			return
		}
	}
}
