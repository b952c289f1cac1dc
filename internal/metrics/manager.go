package metrics

import (
	"sync"
	"time"
)

// Manager owns the in-process trackers served by the stats endpoint
type Manager struct {
	Search    *SearchMetrics
	startedAt time.Time
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the process-wide manager
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			Search:    NewSearchMetrics(),
			startedAt: time.Now(),
		}
	})
	return globalManager
}

// ResetAll resets all trackers
func (m *Manager) ResetAll() {
	m.Search.Reset()
}

// GetSearchStats returns the search stats plus the uptime they cover
func (m *Manager) GetSearchStats() map[string]interface{} {
	stats := m.Search.GetStats()
	stats["uptime_seconds"] = int64(time.Since(m.startedAt).Seconds())
	return stats
}
