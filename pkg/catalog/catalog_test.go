package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/forge/pkg/packfile/packfiletest"
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, dir string) *vfs.PackfileVFS {
	v := vfs.New()
	require.NoError(t, v.Scan(context.Background(), dir))
	return v
}

func writeFolder(t *testing.T) string {
	dir := t.TempDir()

	stream := packfiletest.New("terr01_01.str2_pc").
		WithCompression(true, true).
		Add("terr01_01.cterrain_pc", []byte("cpu")).
		Add("terr01_01.gterrain_pc", []byte("gpu!")).
		Build()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "terr01.vpp_pc"), packfiletest.New("terr01.vpp_pc").
		Add("terr01_zoneA.rfgzone_pc", []byte("zone a")).
		Add("terr01_01.str2_pc", stream).
		Build(), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "missions.vpp_pc"), packfiletest.New("missions.vpp_pc").
		WithCompression(true, false).
		Add("terr01_m01_chain.layer_pc", []byte("layer")).
		Build(), 0o644))

	return dir
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	dir := writeFolder(t)

	c, err := Open(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Sync(ctx, scan(t, dir))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Updated: 2}, result)

	archives, err := c.Archives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 2)
	assert.Equal(t, "missions.vpp_pc", archives[0].Name)
	assert.True(t, archives[0].Compressed)
	assert.Equal(t, 2, archives[1].NumEntries)

	entries, err := c.Find(ctx, "*terrain_pc")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "terr01.vpp_pc/terr01_01.str2_pc/terr01_01.cterrain_pc", entries[0].Path())
	assert.Equal(t, uint32(4), entries[1].Size)

	entries, err = c.Find(ctx, "TERR01_ZONE?.rfgzone_pc")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "terr01.vpp_pc/terr01_zoneA.rfgzone_pc", entries[0].Path())

	// Underscores are literal
	entries, err = c.Find(ctx, "terr01x*")
	require.NoError(t, err)
	assert.Empty(t, entries)

	counts, err := c.Extensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		".rfgzone_pc":  1,
		".str2_pc":     1,
		".cterrain_pc": 1,
		".gterrain_pc": 1,
		".layer_pc":    1,
	}, counts)

	// Nothing changed
	result, err = c.Sync(ctx, scan(t, dir))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Skipped: 2}, result)

	// One archive changes, one disappears
	missions := filepath.Join(dir, "missions.vpp_pc")
	require.NoError(t, os.Remove(missions))
	terr01 := filepath.Join(dir, "terr01.vpp_pc")
	require.NoError(t, os.WriteFile(terr01, packfiletest.New("terr01.vpp_pc").
		Add("terr01_zoneB.rfgzone_pc", []byte("zone b")).
		Build(), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(terr01, later, later))

	result, err = c.Sync(ctx, scan(t, dir))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Updated: 1, Removed: 1}, result)

	entries, err = c.Find(ctx, "*")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "terr01_zoneB.rfgzone_pc", entries[0].Name)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `terr01\_%.rfgzone\_pc`, likePattern("terr01_*.rfgzone_pc"))
	assert.Equal(t, `a_b\%`, likePattern("a?b%"))
}
