package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_SetGetPurge(t *testing.T) {
	c := New[string]()
	c.Set("sid1", "bridge-handle", time.Minute)

	e, ok := c.Get("sid1")
	require.True(t, ok)
	require.Equal(t, "bridge-handle", e.Value)

	// Purge with an idle window shorter than time-since-set removes it.
	removed := c.Purge(-time.Second)
	require.Equal(t, 1, removed)
	_, ok = c.Get("sid1")
	require.False(t, ok)
}

func TestCache_NeedsRefreshOnlyOncePerKey(t *testing.T) {
	c := New[string]()
	e := c.Set("host1", "info", 10*time.Millisecond)
	e.RefreshAfter = time.Now().Add(-time.Millisecond)

	require.True(t, c.NeedsRefresh("host1"))
	require.False(t, c.NeedsRefresh("host1"), "a second refresh must not start while one is in flight")

	c.FinishRefresh("host1", time.Minute)
	entry, _ := c.Get("host1")
	require.False(t, entry.Refreshing)
}

func TestRedisForeignHostCache_FallsBackWithoutClient(t *testing.T) {
	c := NewRedisForeignHostCache[string](nil, "", time.Minute)
	c.Set(nil, "example.com", "standalone")

	v, ok := c.Get(nil, "example.com")
	require.True(t, ok)
	require.Equal(t, "standalone", v)
}
