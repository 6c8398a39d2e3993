package xtbl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/forge/pkg/packfile/packfiletest"
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const vehicles = `<?xml version="1.0" encoding="iso-8859-1"?>
<root>
  <Table>
    <Vehicle>
      <Name>civ_car_01</Name>
      <Max_speed>31.5</Max_speed>
      <Flags>
        <Flag>can_be_stolen</Flag>
      </Flags>
      <_Editor>
        <Category>Entries:Civilian</Category>
      </_Editor>
    </Vehicle>
    <Vehicle>
      <Name>mil_tank_01</Name>
      <Max_speed>12</Max_speed>
      <_Editor>
        <Category>Entries:Military</Category>
      </_Editor>
    </Vehicle>
    <Vehicle>
      <Name>civ_bike_01</Name>
      <_Editor>
        <Category>Entries:Civilian</Category>
      </_Editor>
    </Vehicle>
  </Table>
  <TableDescription>
    <Name>Vehicle</Name>
    <Type>TableDescription</Type>
    <Element>
      <Name>Name</Name>
      <Type>String</Type>
      <Display>Name</Display>
    </Element>
    <Element>
      <Name>Max_speed</Name>
      <Type>Float</Type>
      <Default>20</Default>
      <Description>Top speed in meters per second</Description>
    </Element>
    <Element>
      <Name>Flags</Name>
      <Type>Flags</Type>
      <Flag>can_be_stolen</Flag>
    </Element>
    <Element>
      <Name>Handling</Name>
      <Type>Curve</Type>
    </Element>
  </TableDescription>
</root>
`

func TestParse(t *testing.T) {
	file, err := Parse("misc.vpp_pc", "vehicles.xtbl", []byte(vehicles))
	require.NoError(t, err)

	assert.Equal(t, "misc.vpp_pc", file.VppName)
	assert.Equal(t, "root", file.Root.Name)
	require.Len(t, file.Entries, 3)

	tank := file.Entry("mil_tank_01")
	require.NotNil(t, tank)
	assert.Equal(t, "Vehicle", tank.Name)
	assert.Equal(t, "12", tank.Text("Max_speed"))
	assert.Equal(t, "Entries:Military", Category(tank))
	assert.Nil(t, file.Entry("mil_jet_01"))

	car := file.Entry("civ_car_01")
	require.NotNil(t, car)
	assert.Equal(t, "can_be_stolen", car.Text("Flags/Flag"))
	assert.Equal(t, "", car.Text("Flags/Missing/Flag"))
	// Elements with children have no value of their own
	assert.Equal(t, "", car.Find("Flags").Value)

	assert.Equal(t, []string{"Entries:Civilian", "Entries:Military"}, file.Categories())

	var paths []string
	car.Walk(func(path string, leaf *Node) {
		paths = append(paths, path+"="+leaf.Value)
	})
	assert.Equal(t, []string{
		"Name=civ_car_01",
		"Max_speed=31.5",
		"Flags/Flag=can_be_stolen",
		"_Editor/Category=Entries:Civilian",
	}, paths)

	description := file.Description
	require.NotNil(t, description)
	assert.Equal(t, TypeTableDescription, description.Type)
	require.Len(t, description.Children, 4)

	speed := description.Field("Max_speed")
	require.NotNil(t, speed)
	assert.Equal(t, TypeFloat, speed.Type)
	assert.Equal(t, "20", speed.Default)
	assert.Equal(t, "Top speed in meters per second", speed.Description)
	assert.Equal(t, TypeUnsupported, description.Field("Handling").Type)
	assert.Nil(t, description.Field("Mass"))
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":     "",
		"unclosed":  "<root><Table>",
		"no table":  "<root><Other/></root>",
		"two roots": "<root><Table/></root><root/>",
		"bad close": "<root></Table>",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("misc.vpp_pc", "bad.xtbl", []byte(data))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, TypeComboElement, ParseType("ComboElement"))
	assert.Equal(t, "ComboElement", TypeComboElement.String())
	assert.Equal(t, TypeUnsupported, ParseType("None"))
	assert.Equal(t, "Type(200)", Type(200).String())
}

func scan(t *testing.T) *vfs.PackfileVFS {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "misc.vpp_pc"), packfiletest.New("misc.vpp_pc").
		WithCompression(true, true).
		Add("vehicles.xtbl", []byte(vehicles)).
		Add("weapons.xtbl", []byte("<root><Table><Weapon><Name>sledgehammer</Name></Weapon></Table></root>")).
		Add("broken.xtbl", []byte("<root>")).
		Build(), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	v := vfs.New()
	require.NoError(t, v.Scan(ctx, dir))
	require.NoError(t, v.WaitReady(ctx))
	return v
}

func TestManager(t *testing.T) {
	m := NewManager(scan(t), WithLogger(zerolog.Nop()))

	_, ok := m.Get("misc.vpp_pc", "vehicles.xtbl")
	assert.False(t, ok)
	assert.Empty(t, m.Group("misc.vpp_pc"))

	first, err := m.Parse("misc.vpp_pc", "vehicles.xtbl")
	require.NoError(t, err)
	assert.NotNil(t, first.Entry("civ_bike_01"))

	// Parsed once, then served from the group
	second, err := m.Parse("misc.vpp_pc", "vehicles.xtbl")
	require.NoError(t, err)
	assert.Same(t, first, second)

	cached, ok := m.Get("misc.vpp_pc", "vehicles.xtbl")
	require.True(t, ok)
	assert.Same(t, first, cached)

	_, err = m.Parse("misc.vpp_pc", "weapons.xtbl")
	require.NoError(t, err)

	group := m.Group("misc.vpp_pc")
	require.Len(t, group, 2)
	assert.Equal(t, "vehicles.xtbl", group[0].Name)
	assert.Equal(t, "weapons.xtbl", group[1].Name)

	// Failures are reported every time and never cached
	for i := 0; i < 2; i++ {
		_, err = m.Parse("misc.vpp_pc", "broken.xtbl")
		assert.ErrorIs(t, err, ErrFormat)
	}
	_, ok = m.Get("misc.vpp_pc", "broken.xtbl")
	assert.False(t, ok)

	_, err = m.Parse("misc.vpp_pc", "missing.xtbl")
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	_, err = m.Parse("dlc.vpp_pc", "vehicles.xtbl")
	assert.ErrorIs(t, err, vfs.ErrNotFound)
	assert.Empty(t, m.Group("dlc.vpp_pc"))
}

func TestManagerConcurrent(t *testing.T) {
	m := NewManager(scan(t), WithLogger(zerolog.Nop()))

	results := make([]*File, 16)
	var group errgroup.Group
	for i := range results {
		i := i
		group.Go(func() error {
			file, err := m.Parse("misc.vpp_pc", "weapons.xtbl")
			results[i] = file
			return err
		})
	}
	require.NoError(t, group.Wait())

	for _, file := range results {
		assert.Same(t, results[0], file)
	}
}
