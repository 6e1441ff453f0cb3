package session

import "sync"

// IntegrityMonitor 记录防作弊信号（退出全屏），计数只增不减。
// 计数触达上限时恰好发出一次「超限」信号，由 Controller 等同于
// 倒计时归零处理：强制交卷，不再询问确认。
type IntegrityMonitor struct {
	mu       sync.Mutex
	count    int
	max      int
	signaled bool
}

// NewIntegrityMonitor seed 来自续考时持久化的计数
func NewIntegrityMonitor(seed, max int) *IntegrityMonitor {
	if seed < 0 {
		seed = 0
	}
	return &IntegrityMonitor{count: seed, max: max}
}

// RecordExit 记一次退出全屏。exceeded 在计数首次触达上限时为 true，
// 且整个生命周期内只为 true 一次。
func (m *IntegrityMonitor) RecordExit() (count int, exceeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	if m.max > 0 && m.count >= m.max && !m.signaled {
		m.signaled = true
		return m.count, true
	}
	return m.count, false
}

func (m *IntegrityMonitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
