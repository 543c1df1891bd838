package generate

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/driftchat/backend/pkg/logger"
)

// Runner supervises fire-and-forget background tasks. Generation continues
// after the HTTP response returns, so every dispatched task gets its own
// panic boundary and is waited on during shutdown.
type Runner struct {
	wg      sync.WaitGroup
	stopped atomic.Bool
	logger  *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{logger: log}
}

// Go dispatches fn on its own goroutine. Tasks submitted after Shutdown
// are dropped with a log line rather than racing the process exit.
func (r *Runner) Go(name string, fn func()) {
	if r.stopped.Load() {
		r.logger.Warn("task dropped, runner stopped", zap.String("task", name))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", rec),
					zap.Stack("stack"))
			}
		}()
		fn()
	}()
}

// Shutdown stops accepting tasks and waits for running ones to finish.
func (r *Runner) Shutdown() {
	r.stopped.Store(true)
	r.wg.Wait()
}
