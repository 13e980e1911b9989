package handler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNotifierFires(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	var fired atomic.Int32

	n.Schedule(1, time.Millisecond, func() { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, n.Pending(1))
}

func TestNotifierReplacesPendingJob(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	var first, second atomic.Int32

	n.Schedule(1, 50*time.Millisecond, func() { first.Add(1) })
	n.Schedule(1, time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "superseded job must not fire")
}

func TestNotifierCancel(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	var fired atomic.Int32

	n.Schedule(1, 20*time.Millisecond, func() { fired.Add(1) })
	n.Cancel(1)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, n.Pending(1))
}

func TestNotifierIndependentUsers(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	var a, b atomic.Int32

	n.Schedule(1, time.Millisecond, func() { a.Add(1) })
	n.Schedule(2, time.Millisecond, func() { b.Add(1) })

	assert.Eventually(t, func() bool {
		return a.Load() == 1 && b.Load() == 1
	}, time.Second, time.Millisecond)
}
