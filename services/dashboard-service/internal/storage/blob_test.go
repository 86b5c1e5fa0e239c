package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs(), "")
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	assert.Equal(t, DefaultBucket, store.Bucket())

	n, err := store.Put(ctx, "owner/123_leads.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	rc, err := store.Get(ctx, "owner/123_leads.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
}

func TestPut_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_, err := store.Put(ctx, "k.csv", strings.NewReader("a much longer first version"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "k.csv", strings.NewReader("short"))
	require.NoError(t, err)

	rc, err := store.Get(ctx, "k.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "short", string(body))
}

func TestGet_Missing(t *testing.T) {
	_, err := newTestStore().Get(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	_, err := store.Put(ctx, "owner/a.csv", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "owner/a.csv", "owner/missing.csv"))

	_, err = store.Get(ctx, "owner/a.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	for _, key := range []string{"", "/abs.csv", "../escape.csv", "a/../../b.csv", "a//b.csv"} {
		_, err := store.Put(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, key)
	}
}
