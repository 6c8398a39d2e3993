package main

import (
	"image"
	"strings"
	"testing"

	"github.com/cfoust/forge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTerritory(t *testing.T) {
	cfg, err := config.Process(nil)
	require.NoError(t, err)

	assert.Equal(t, config.TerritoryConfig{
		Name:      "terr01",
		File:      "zonescript_terr01.vpp_pc",
		ShortName: "terr01",
	}, resolveTerritory(cfg, "terr01"))

	assert.Equal(t, config.TerritoryConfig{
		Name:      "mp_crashsite",
		File:      "zonescript_mp_crashsite.vpp_pc",
		ShortName: "mp_crashsite",
	}, resolveTerritory(cfg, "zonescript_mp_crashsite.vpp_pc"))
}

func TestScaled(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 64))

	assert.Equal(t, img, scaled(img, 0))
	assert.Equal(t, img, scaled(img, 512))

	out := scaled(img, 128)
	assert.Equal(t, 128, out.Bounds().Dx())
	assert.Equal(t, 32, out.Bounds().Dy())
}

func TestTable(t *testing.T) {
	out := newTable("NAME", "ENTRIES")
	out.Row("terr01.vpp_pc", "12")
	out.Row("missions.vpp_pc", "3")

	rendered := out.Render()
	assert.Less(t, strings.Index(rendered, "NAME"), strings.Index(rendered, "terr01.vpp_pc"))
	assert.Less(t, strings.Index(rendered, "terr01.vpp_pc"), strings.Index(rendered, "missions.vpp_pc"))
	assert.NotContains(t, rendered, "│")
}
