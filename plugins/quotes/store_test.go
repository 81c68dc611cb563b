package quotes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unerror/iris/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "quotes.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewStore(conn)
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Random(ctx)
	assert.Error(t, err)

	id, err := store.Add(ctx, "@alice:example.org", "simplicity is complicated")
	require.NoError(t, err)

	q, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "simplicity is complicated", q.Body)
	assert.Equal(t, "@alice:example.org", q.Author)

	_, err = store.Get(ctx, id+100)
	assert.Error(t, err)

	q, err = store.Random(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, q.ID)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
