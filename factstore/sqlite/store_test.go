package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGetFactMissingReturnsFalse(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.GetFact(context.Background(), "status", "rover1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetFactThenGetFactReturnsMostRecent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetFact(ctx, "status", "rover1", "docked"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.SetFact(ctx, "status", "rover1", map[string]any{"state": "available"}))

	v, ok, err := st.GetFact(ctx, "status", "rover1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]any{"state": "available"}, v)
}

func TestGetFactAtReturnsHistoricalValue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetFact(ctx, "status", "rover1", "docked"))
	cutover := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.SetFact(ctx, "status", "rover1", "available"))

	v, ok, err := st.GetFactAt(ctx, "status", "rover1", cutover)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "docked", v)
}

func TestCleanupRemovesAllFacts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetFact(ctx, "status", "rover1", "docked"))
	require.NoError(t, st.Cleanup(ctx))

	_, ok, err := st.GetFact(ctx, "status", "rover1")
	require.NoError(t, err)
	require.False(t, ok)
}
