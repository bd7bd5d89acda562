package chat

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceTracker_ReferenceCounting(t *testing.T) {
	p := NewPresenceTracker(nil)

	assert.True(t, p.MarkOnline("alice"))
	assert.False(t, p.MarkOnline("alice"))
	assert.False(t, p.MarkOnline("alice"))
	assert.Equal(t, []string{"alice"}, p.Snapshot())
	assert.Equal(t, 3, p.Count("alice"))

	assert.False(t, p.MarkOffline("alice"))
	assert.False(t, p.MarkOffline("alice"))
	assert.Equal(t, []string{"alice"}, p.Snapshot())

	assert.True(t, p.MarkOffline("alice"))
	assert.Empty(t, p.Snapshot())
}

func TestPresenceTracker_SnapshotInsertionOrder(t *testing.T) {
	p := NewPresenceTracker(nil)

	p.MarkOnline("carol")
	p.MarkOnline("alice")
	p.MarkOnline("bob")
	p.MarkOffline("alice")
	p.MarkOnline("alice")

	assert.Equal(t, []string{"carol", "bob", "alice"}, p.Snapshot())
}

func TestPresenceTracker_OfflineBelowZeroIsClamped(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenceTracker(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NotPanics(t, func() {
		assert.False(t, p.MarkOffline("ghost"))
	})
	assert.Equal(t, 0, p.Count("ghost"))
	assert.Empty(t, p.Snapshot())
	assert.Contains(t, buf.String(), "below zero")

	assert.True(t, p.MarkOnline("ghost"))
}

func TestPresenceTracker_SnapshotIsACopy(t *testing.T) {
	p := NewPresenceTracker(nil)
	p.MarkOnline("alice")

	snapshot := p.Snapshot()
	snapshot[0] = "mallory"

	assert.Equal(t, []string{"alice"}, p.Snapshot())
}
