package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/forge/pkg/packfile"
	"github.com/cfoust/forge/pkg/packfile/packfiletest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, dir string) (string, os.FileInfo) {
	path := filepath.Join(dir, "misc.vpp_pc")
	data := packfiletest.New("misc.vpp_pc").
		Add("a.txt", []byte("a")).
		Add("b.txt", []byte("bb")).
		Build()
	require.NoError(t, os.WriteFile(path, data, 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	return path, info
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	store := FSStore(filepath.Join(t.TempDir(), "nested"))

	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, Missing)

	require.NoError(t, store.Set(ctx, "key", []byte("value")))
	data, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)
}

func TestIndexCache(t *testing.T) {
	ctx := context.Background()
	path, info := writeArchive(t, t.TempDir())

	p, err := packfile.Open(path)
	require.NoError(t, err)

	cache := NewIndexCache(FSStore(t.TempDir()))

	_, err = cache.Load(ctx, path, info)
	assert.ErrorIs(t, err, Missing)

	require.NoError(t, cache.Save(ctx, path, info, &p.Directory))

	directory, err := cache.Load(ctx, path, info)
	require.NoError(t, err)
	assert.Equal(t, p.Directory, *directory)

	reopened, err := packfile.OpenDirectory(path, *directory)
	require.NoError(t, err)
	body, err := reopened.ExtractSingleFile("b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), body)
}

func TestIndexKeyTracksModification(t *testing.T) {
	path, info := writeArchive(t, t.TempDir())
	before := IndexKey(path, info)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	touched, err := os.Stat(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, IndexKey(path, touched))
	assert.Equal(t, before, IndexKey(path, info))
}

type memoryStore map[string][]byte

func (m memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, Missing
	}
	return data, nil
}

func (m memoryStore) Set(ctx context.Context, key string, data []byte) error {
	m[key] = data
	return nil
}

func TestCorruptIndexIsMiss(t *testing.T) {
	ctx := context.Background()
	path, info := writeArchive(t, t.TempDir())

	store := memoryStore{IndexKey(path, info): []byte{0xFF, 0x00, 0x13}}
	_, err := NewIndexCache(store).Load(ctx, path, info)
	assert.True(t, errors.Is(err, Missing))
}
