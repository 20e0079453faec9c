package refcache

import (
	"context"
	"time"
)

// startCleanup spawns the periodic loop that sweeps terminal task
// records older than the configured retention window. It is started
// once, the first time WithCleanup is applied during New.
func (s *Store) startCleanup() {
	s.cleanupStop = make(chan struct{})
	s.cleanupStarted = true
	ticker := time.NewTicker(s.cleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := s.tasks.Cleanup(s.cleanupRetention)
				if removed > 0 {
					s.logger.Debug(context.Background(), "refcache: cleanup removed terminal task records", "count", removed)
					s.pruneActiveTasks()
				}
			case <-s.cleanupStop:
				return
			}
		}
	}()
}

// pruneActiveTasks drops activeTasks/submissions entries whose task is
// no longer known to the task backend, so RetryTask and taskResponse
// don't keep serving stale handles after a cleanup sweep.
func (s *Store) pruneActiveTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for refID, taskID := range s.activeTasks {
		if _, ok := s.tasks.GetStatus(taskID); !ok {
			delete(s.activeTasks, refID)
			delete(s.submissions, refID)
		}
	}
}
