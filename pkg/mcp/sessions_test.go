package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatchRegistry_WatchAndLookup(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("case-1", "session-a")
	r.Watch("case-1", "session-b")
	r.Watch("case-1", "session-a")

	assert.Equal(t, []string{"session-a", "session-b"}, r.SessionsFor("case-1"))
	assert.Empty(t, r.SessionsFor("case-2"))
}

func TestWatchRegistry_Unwatch(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("case-1", "session-a")
	r.Watch("case-1", "session-b")
	r.Unwatch("case-1", "session-a")
	assert.Equal(t, []string{"session-b"}, r.SessionsFor("case-1"))

	r.Unwatch("case-1", "session-b")
	assert.Empty(t, r.SessionsFor("case-1"))
	assert.NotContains(t, r.watches, "case-1")
}

func TestWatchRegistry_Remove(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("case-1", "session-a")
	r.Watch("case-2", "session-a")
	r.Watch("case-2", "session-b")

	r.Remove("session-a")

	assert.Empty(t, r.SessionsFor("case-1"))
	assert.Equal(t, []string{"session-b"}, r.SessionsFor("case-2"))
}

func TestWatchRegistry_SessionsForIsCopy(t *testing.T) {
	r := NewWatchRegistry()
	r.Watch("case-1", "session-a")

	got := r.SessionsFor("case-1")
	got[0] = "mutated"

	assert.Equal(t, []string{"session-a"}, r.SessionsFor("case-1"))
}
