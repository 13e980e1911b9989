package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier schedules fire-and-forget follow-up jobs, one pending job per
// user. Scheduling again for the same user replaces the pending job; jobs
// are not durable across restarts.
type Notifier struct {
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[int64]*time.Timer
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		jobs:   make(map[int64]*time.Timer),
	}
}

// Schedule runs fn after delay. Returns the job ID for logging.
func (n *Notifier) Schedule(userID int64, delay time.Duration, fn func()) string {
	jobID := uuid.New().String()

	n.mu.Lock()
	defer n.mu.Unlock()

	if prev, ok := n.jobs[userID]; ok {
		prev.Stop()
		n.logger.Info("replaced pending follow-up", zap.Int64("user_id", userID))
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		n.mu.Lock()
		// A replacement may have landed between firing and locking.
		if n.jobs[userID] == timer {
			delete(n.jobs, userID)
		}
		n.mu.Unlock()
		fn()
	})
	n.jobs[userID] = timer

	n.logger.Info("follow-up scheduled",
		zap.Int64("user_id", userID),
		zap.String("job_id", jobID),
		zap.Duration("delay", delay))
	return jobID
}

// Cancel drops the user's pending job, if any.
func (n *Notifier) Cancel(userID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if timer, ok := n.jobs[userID]; ok {
		timer.Stop()
		delete(n.jobs, userID)
	}
}

// Pending reports whether the user has a job queued.
func (n *Notifier) Pending(userID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.jobs[userID]
	return ok
}
