package manager

import (
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

func (m *Manager) reapLoop() {
	defer m.wg.Done()

	interval := m.cfg.Sessions.ReapInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Reap()
		case <-m.done:
			return
		}
	}
}

// Reap ends sessions whose game already ended, whose time limit elapsed
// without input, or that have been idle longer than the idle timeout.
// Sessions with an action in flight are left for the next sweep.
// Returns the number of sessions this sweep ended.
func (m *Manager) Reap() int {
	now := m.now()
	idle := m.cfg.Sessions.IdleTimeout
	ended := 0

	for _, s := range m.snapshot() {
		if s.Ended() || s.Busy() {
			continue
		}

		var reason string
		switch {
		case s.GameEnded():
			reason = s.State().EndReason
		case s.CheckTimeLimit():
			reason = core.ReasonTimeLimit
		case idle > 0 && now.Sub(s.LastActivity()) > idle:
			reason = core.ReasonIdleTimeout
		default:
			continue
		}

		if _, first := m.end(s, reason); first {
			m.logger.Debug("reaped session", "session", s.ID(), "reason", reason)
			ended++
		}
	}
	return ended
}
