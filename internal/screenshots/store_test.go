package screenshots

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore_PutGet(t *testing.T) {
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "session-1", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Regexp(t, `^session-1/.+\.jpg$`, ref)

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
}

func TestDirStore_RejectsTraversal(t *testing.T) {
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put(ctx, "../escape", []byte{1})
	assert.Error(t, err)
}

func TestDirStore_Missing(t *testing.T) {
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "s/00000000-0000-0000-0000-000000000000.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref, err := s.Put(ctx, "s", []byte("abc"))
	require.NoError(t, err)

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
