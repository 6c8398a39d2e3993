package territory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/forge/pkg/classes"
	"github.com/cfoust/forge/pkg/packfile/packfiletest"
	"github.com/cfoust/forge/pkg/vfs"
	"github.com/cfoust/forge/pkg/zones"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortName(t *testing.T) {
	for _, test := range []struct {
		full       string
		territory  string
		persistent bool
		short      string
	}{
		{"p_dlc01_myzone.rfgzone_pc", "dlc01", true, "p_myzone"},
		{"terr01_zoneA.layer_pc", "terr01", false, "zoneA"},
		{"terr01_08_05.rfgzone_pc", "terr01", false, "08_05"},
		{"dlc01_zoneA.rfgzone_pc", "terr01", false, "dlc01_zoneA.rfgzone_pc"},
		{"terr01_zoneA.txt", "terr01", false, "terr01_zoneA.txt"},
		{"terr01_zoneA.rfgzone_pc", "terr01", true, "terr01_zoneA.rfgzone_pc"},
		{"terr01_.rfgzone_pc", "terr01", false, "terr01_"},
		{"p_terr01_.rfgzone_pc", "terr01", true, "p_terr01_"},
		{"missions - m01_chain", "terr01", false, "missions - m01_chain"},
	} {
		assert.Equal(t, test.short, ShortName(test.full, test.territory, test.persistent), test.full)
	}
}

func zoneBytes(t *testing.T, hashes ...uint32) []byte {
	zone := &zones.Zone{}
	for i, hash := range hashes {
		zone.Objects = append(zone.Objects, zones.Object{
			ClassnameHash: hash,
			Handle:        uint32(i + 1),
			Parent:        zones.NoHandle,
		})
	}

	data, err := zones.Marshal(zone)
	require.NoError(t, err)
	return data
}

const (
	moverHash = 2898847573
	zoneHash  = 3740226015
)

func loadFolder(t *testing.T, dir string) *vfs.PackfileVFS {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	v := vfs.New()
	require.NoError(t, v.Scan(ctx, dir))
	require.NoError(t, v.WaitReady(ctx))
	return v
}

func writeTerritory(t *testing.T) string {
	dir := t.TempDir()
	write := func(name string, data []byte) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	write("terr01_l0.vpp_pc", packfiletest.New("terr01_l0.vpp_pc").
		WithCompression(true, true).
		Add("terr01_zoneA.rfgzone_pc", zoneBytes(t, zoneHash, moverHash)).
		Add("p_terr01_zoneB.rfgzone_pc", zoneBytes(t, moverHash, moverHash, moverHash, moverHash, zoneHash)).
		Add("terr01_zoneA.cterrain_pc", []byte("ignored")).
		Build())

	write("missions.vpp_pc", packfiletest.New("missions.vpp_pc").
		Add("terr01_m01_chain.layer_pc", zoneBytes(t, 777, moverHash, zoneHash)).
		Build())

	write("activities.vpp_pc", packfiletest.New("activities.vpp_pc").
		Add("terr01_raid.layer_pc", zoneBytes(t, zoneHash)).
		Add("terr01_raid.txt", []byte("ignored")).
		Build())

	return dir
}

func TestLoadZoneData(t *testing.T) {
	v := loadFolder(t, writeTerritory(t))
	registry := classes.NewRegistry()

	territory := New(v, "terr01_l0.vpp_pc", "terr01", registry)
	require.NoError(t, territory.LoadZoneData(context.Background()))
	assert.True(t, territory.Loaded())

	require.Len(t, territory.Zones, 4)

	names := make([]string, len(territory.Zones))
	for i, zone := range territory.Zones {
		names[i] = zone.ShortName
	}
	assert.Equal(t, []string{
		"p_zoneB",
		"missions - m01_chain",
		"zoneA",
		"activities - raid",
	}, names)

	persistent := territory.Zones[0]
	assert.True(t, persistent.Persistent)
	assert.True(t, persistent.Visible)
	assert.Equal(t, "p_terr01_zoneB.rfgzone_pc", persistent.Name)
	assert.Equal(t, "rfg_mover", persistent.Zone.Objects[0].Classname)

	mission := territory.Zones[1]
	assert.True(t, mission.MissionLayer)
	assert.False(t, mission.ActivityLayer)
	assert.False(t, mission.Visible)

	activity := territory.Zones[3]
	assert.True(t, activity.ActivityLayer)

	assert.Equal(t, len("missions - m01_chain"), territory.LongestZoneName)

	// The mission layer used a class nobody knew about
	assert.Equal(t, 46, registry.Len())
	_, ok := registry.Get(777)
	assert.True(t, ok)

	territory.UpdateObjectClassInstanceCounts()
	top := registry.Classes()[0]
	assert.Equal(t, "rfg_mover", top.Name)
	assert.Equal(t, 4, top.NumInstances)

	territory.Reset()
	assert.Empty(t, territory.Zones)
	assert.False(t, territory.Loaded())
}

func TestLoadZoneDataDLC(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "dlc01_l0.vpp_pc"),
		packfiletest.New("dlc01_l0.vpp_pc").
			Add("p_dlc01_myzone.rfgzone_pc", zoneBytes(t, zoneHash)).
			Build(),
		0o644,
	))
	// Belongs to terr01, must not be picked up
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "missions.vpp_pc"),
		packfiletest.New("missions.vpp_pc").
			Add("terr01_m01_chain.layer_pc", zoneBytes(t, zoneHash)).
			Build(),
		0o644,
	))

	territory := New(loadFolder(t, dir), "dlc01_l0.vpp_pc", "dlc01", nil)
	require.NoError(t, territory.LoadZoneData(context.Background()))
	require.Len(t, territory.Zones, 1)
	assert.Equal(t, "p_myzone", territory.Zones[0].ShortName)
}

func TestLoadZoneDataMissingArchive(t *testing.T) {
	territory := New(loadFolder(t, t.TempDir()), "terr01_l0.vpp_pc", "terr01", nil)

	err := territory.LoadZoneData(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestLoadZoneDataBadZone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "terr01_l0.vpp_pc"),
		packfiletest.New("terr01_l0.vpp_pc").
			Add("terr01_bad.rfgzone_pc", []byte("garbage")).
			Build(),
		0o644,
	))

	territory := New(loadFolder(t, dir), "terr01_l0.vpp_pc", "terr01", nil)
	err := territory.LoadZoneData(context.Background())
	assert.ErrorIs(t, err, zones.ErrFormat)
}

func TestLoadZoneDataCancelled(t *testing.T) {
	v := loadFolder(t, writeTerritory(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	territory := New(v, "terr01_l0.vpp_pc", "terr01", nil)
	err := territory.LoadZoneData(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, territory.Zones)
}

func TestSortZonesStable(t *testing.T) {
	zone := func(name string, count uint32) *ZoneData {
		return &ZoneData{
			Name: name,
			Zone: &zones.Zone{Header: zones.Header{NumObjects: count}},
		}
	}

	list := []*ZoneData{zone("a", 1), zone("b", 3), zone("c", 1), zone("d", 3)}
	SortZones(list)

	names := []string{}
	for _, z := range list {
		names = append(names, z.Name)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, names)
}

func TestLoadZoneDataLogger(t *testing.T) {
	var output bytes.Buffer

	territory := New(
		loadFolder(t, writeTerritory(t)),
		"terr01_l0.vpp_pc",
		"terr01",
		nil,
		WithLogger(zerolog.New(&output)),
	)
	require.NoError(t, territory.LoadZoneData(context.Background()))

	assert.Contains(t, output.String(), "loading zone data from terr01_l0.vpp_pc")
	assert.Contains(t, output.String(), "loaded 4 zones from terr01_l0.vpp_pc")
}
