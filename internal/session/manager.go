package session

import (
	"sync"

	"phynetix_backend/pkg/monitoring"
)

// Manager 进程内会话注册表：attemptId -> Controller。单实例部署下
// 这里就是全部在线会话；重启后由服务层按持久化进度重建。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Controller)}
}

// Attach 注册并启动会话。同一 attemptId 重复注册时沿用已有会话，
// 不会出现两套倒计时争写同一条 Attempt。
func (m *Manager) Attach(c *Controller) *Controller {
	m.mu.Lock()
	if existing, ok := m.sessions[c.AttemptID()]; ok {
		m.mu.Unlock()
		return existing
	}
	m.sessions[c.AttemptID()] = c
	size := len(m.sessions)
	m.mu.Unlock()

	monitoring.ActiveSessions.Set(float64(size))
	c.Start()
	return c
}

func (m *Manager) Get(attemptID string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[attemptID]
	return c, ok
}

// Remove 摘除已终结的会话并停掉定时器
func (m *Manager) Remove(attemptID string) {
	m.mu.Lock()
	c, ok := m.sessions[attemptID]
	if ok {
		delete(m.sessions, attemptID)
	}
	size := len(m.sessions)
	m.mu.Unlock()

	monitoring.ActiveSessions.Set(float64(size))
	if ok {
		c.Stop()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown 停机时逐个拆除会话，进行中的做最后一次进度保存
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		all = append(all, c)
	}
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	monitoring.ActiveSessions.Set(0)
	for _, c := range all {
		c.Stop()
	}
}
