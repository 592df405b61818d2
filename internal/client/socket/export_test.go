package socket

func ListenerCount(m *Manager) int {
	return m.listenerCount()
}
