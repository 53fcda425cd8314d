// ABOUTME: Tests for the session registry
// ABOUTME: Covers put/get/remove semantics and stats snapshots

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetRemove(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	_, ok := r.Get("conv-1")
	assert.False(t, ok)

	sess := New("conv-1", &mockSession{id: "conv-1", model: "m1"}, now)
	r.Put(sess)

	got, ok := r.Get("conv-1")
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, r.Len())

	// Put replaces.
	replacement := New("conv-1", &mockSession{id: "conv-1", model: "m2"}, now)
	r.Put(replacement)
	got, _ = r.Get("conv-1")
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, r.Len())

	r.Remove("conv-1")
	_, ok = r.Get("conv-1")
	assert.False(t, ok)

	// Removing a missing entry is a no-op.
	r.Remove("conv-1")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	stats := r.Stats("conv-1", now)
	assert.False(t, stats.Exists)
	assert.Zero(t, stats.MessageCount)

	sess := New("conv-1", &mockSession{id: "conv-1", model: "m1"}, now)
	sess.BeginExchange(now)
	sess.BeginExchange(now.Add(time.Minute))
	r.Put(sess)

	stats = r.Stats("conv-1", now.Add(11*time.Minute))
	assert.True(t, stats.Exists)
	assert.Equal(t, "m1", stats.Model)
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, 10*time.Minute, stats.Idle)
}

func TestSession_TouchIsMonotonic(t *testing.T) {
	now := time.Now()
	sess := New("conv-1", &mockSession{id: "conv-1", model: "m1"}, now)

	later := now.Add(time.Minute)
	sess.Touch(later)
	assert.Equal(t, later, sess.LastActiveAt())

	// A stale touch cannot move the clock backwards.
	sess.Touch(now)
	assert.Equal(t, later, sess.LastActiveAt())
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Put(New("conv-1", &mockSession{id: "conv-1", model: "m1"}, now))
	r.Put(New("conv-2", &mockSession{id: "conv-2", model: "m1"}, now))

	assert.Len(t, r.List(), 2)
}
