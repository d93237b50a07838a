package rooms

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending callback per channel. Scheduling again
// for the same channel replaces the pending callback; Cancel drops it. The
// manager uses it for grace-delay deletion checks, and tests substitute a
// manual implementation to fire timers without wall-clock waits.
type Scheduler interface {
	Schedule(channelID string, delay time.Duration, fn func())
	Cancel(channelID string)
}

type timerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() Scheduler {
	return &timerScheduler{timers: make(map[string]*time.Timer)}
}

func (s *timerScheduler) Schedule(channelID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[channelID]; ok {
		timer.Stop()
	}
	s.timers[channelID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, channelID)
		s.mu.Unlock()
		fn()
	})
}

func (s *timerScheduler) Cancel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[channelID]; ok {
		timer.Stop()
		delete(s.timers, channelID)
	}
}
