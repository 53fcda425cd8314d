// ABOUTME: Tests for the idle-session reaper
// ABOUTME: Uses a stub cleaner to observe sweep invocations

package reaper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCleaner struct {
	calls   atomic.Int64
	removed int
}

func (c *stubCleaner) CleanupIdleSessions(ctx context.Context) int {
	c.calls.Add(1)
	return c.removed
}

func TestReaper_SweepsOnInterval(t *testing.T) {
	cleaner := &stubCleaner{removed: 2}
	r := New(cleaner, 10*time.Millisecond, slog.Default())

	require.NoError(t, r.Start())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for cleaner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Positive(t, cleaner.calls.Load())
}

func TestReaper_StopHaltsSweeps(t *testing.T) {
	cleaner := &stubCleaner{}
	r := New(cleaner, 10*time.Millisecond, slog.Default())

	require.NoError(t, r.Start())
	r.Stop()

	settled := cleaner.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, cleaner.calls.Load())
}

func TestReaper_StopBeforeStart(t *testing.T) {
	r := New(&stubCleaner{}, time.Minute, slog.Default())
	// Must not panic.
	r.Stop()
}
