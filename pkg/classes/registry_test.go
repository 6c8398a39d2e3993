package classes

import (
	"testing"

	"github.com/cfoust/forge/pkg/zones"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	objects []zones.Object
	visible bool
}

func (s source) ZoneObjects() []zones.Object { return s.objects }
func (s source) IsVisible() bool             { return s.visible }

func objects(hashes ...uint32) []zones.Object {
	out := make([]zones.Object, len(hashes))
	for i, hash := range hashes {
		out[i] = zones.Object{ClassnameHash: hash, Classname: "mystery"}
	}
	return out
}

const (
	moverHash = 2898847573
	zoneHash  = 3740226015
	coverHash = 3322951465
)

func TestDefaults(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 45, r.Len())

	mover, ok := r.Get(moverHash)
	require.True(t, ok)
	assert.Equal(t, "rfg_mover", mover.Name)
	assert.True(t, mover.Show)

	name, ok := r.NameOf(zoneHash)
	require.True(t, ok)
	assert.Equal(t, "obj_zone", name)

	unknown, ok := r.Get(0)
	require.True(t, ok)
	assert.Equal(t, Unknown, unknown.Name)

	assert.False(t, r.ShouldShow(coverHash))
	assert.True(t, r.ShouldShow(123456))

	light, _ := r.Get(2915886275)
	assert.True(t, light.ShowLabel)
}

func TestLookup(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup(77, "custom", false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 45, r.Len())

	class, err := r.Lookup(77, "custom", true)
	require.NoError(t, err)
	assert.Equal(t, "custom", class.Name)
	assert.True(t, class.Show)
	assert.Equal(t, 46, r.Len())

	// Registration is idempotent
	class, err = r.Lookup(77, "other", true)
	require.NoError(t, err)
	assert.Equal(t, "custom", class.Name)
	assert.Equal(t, 46, r.Len())

	require.NoError(t, r.SetShow(77, false))
	assert.False(t, r.ShouldShow(77))
	assert.ErrorIs(t, r.SetShow(78, false), ErrNotFound)
}

func TestRegisterUnknown(t *testing.T) {
	r := NewRegistry()
	sources := []Source{
		source{objects: objects(moverHash, 500, 501)},
		source{objects: objects(500, 502)},
	}

	assert.Equal(t, 3, r.RegisterUnknown(sources))
	assert.Equal(t, 48, r.Len())
	assert.Equal(t, 0, r.RegisterUnknown(sources))
	assert.Equal(t, 48, r.Len())

	class, ok := r.Get(502)
	require.True(t, ok)
	assert.Equal(t, "mystery", class.Name)
}

func TestRecomputeInstanceCounts(t *testing.T) {
	r := NewRegistry()
	sources := []Source{
		source{objects: objects(zoneHash, moverHash, moverHash), visible: true},
		source{objects: objects(coverHash, coverHash, coverHash, coverHash)},
	}

	r.RecomputeInstanceCounts(sources, true)

	classes := r.Classes()
	assert.Equal(t, "rfg_mover", classes[0].Name)
	assert.Equal(t, 2, classes[0].NumInstances)
	assert.Equal(t, "obj_zone", classes[1].Name)
	assert.Equal(t, 1, classes[1].NumInstances)

	// Zero counts keep the default order
	assert.Equal(t, "cover_node", classes[2].Name)
	assert.Equal(t, 0, classes[2].NumInstances)
	assert.Equal(t, "navpoint", classes[3].Name)

	r.RecomputeInstanceCounts(sources, false)
	classes = r.Classes()
	assert.Equal(t, "cover_node", classes[0].Name)
	assert.Equal(t, 4, classes[0].NumInstances)

	// Lookups still work after reordering
	mover, ok := r.Get(moverHash)
	require.True(t, ok)
	assert.Equal(t, 2, mover.NumInstances)

	total := 0
	for _, class := range classes {
		total += class.NumInstances
	}
	assert.Equal(t, 7, total)
}

func TestRecomputeInstanceCountsRepeatable(t *testing.T) {
	r := NewRegistry()
	r.Register("custom_b", 501)
	r.Register("custom_a", 500)

	// Three classes tie on two instances
	visible := []Source{
		source{objects: objects(501, moverHash, 500, zoneHash, 500, moverHash, 501), visible: true},
		source{objects: objects(coverHash, coverHash, coverHash)},
	}

	r.RecomputeInstanceCounts(visible, true)
	first := r.Classes()

	r.RecomputeInstanceCounts(visible, true)
	assert.Equal(t, first, r.Classes())

	names := []string{}
	for _, class := range first[:4] {
		names = append(names, class.Name)
	}
	assert.Equal(t, []string{"rfg_mover", "custom_b", "custom_a", "obj_zone"}, names)

	// Counting other zones in between does not change how ties fall
	r.RecomputeInstanceCounts(visible, false)
	assert.Equal(t, "cover_node", r.Classes()[0].Name)

	r.RecomputeInstanceCounts(visible, true)
	assert.Equal(t, first, r.Classes())
}
