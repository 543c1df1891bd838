package generate

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftchat/backend/pkg/logger"
)

func TestRunnerWaitsForTasks(t *testing.T) {
	r := NewRunner(logger.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		r.Go("task", func() { ran.Add(1) })
	}
	r.Shutdown()

	assert.Equal(t, int32(10), ran.Load())
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := NewRunner(logger.NewNop())

	var after atomic.Bool
	r.Go("panics", func() { panic("boom") })
	r.Go("survives", func() { after.Store(true) })
	r.Shutdown()

	assert.True(t, after.Load())
}

func TestRunnerDropsTasksAfterShutdown(t *testing.T) {
	r := NewRunner(logger.NewNop())
	r.Shutdown()

	var ran atomic.Bool
	r.Go("late", func() { ran.Store(true) })
	assert.False(t, ran.Load())
}
