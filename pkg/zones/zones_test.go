package zones

import (
	"math"
	"testing"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"

	opt "github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classMap map[uint32]string

func (c classMap) NameOf(hash uint32) (string, bool) {
	name, ok := c[hash]
	return name, ok
}

const (
	objZoneHash = 3740226015
	moverHash   = 2898847573
)

var testClasses = classMap{
	objZoneHash: "obj_zone",
	moverHash:   "rfg_mover",
}

func sampleZone() *Zone {
	return &Zone{
		Header: Header{
			DistrictHash:  77,
			DistrictFlags: 2,
		},
		Handles: []uint32{100, 101, 102},
		Objects: []Object{
			{
				ClassnameHash: objZoneHash,
				Handle:        100,
				Bmin:          geom.NewVec3(-10, 0, -10),
				Bmax:          geom.NewVec3(10, 20, 30),
				Parent:        NoHandle,
				Sibling:       NoHandle,
				Child:         101,
				Properties: []Property{
					{Type: PropertyString, NameHash: HashName("terrain_file_name"), Value: "terr01_05_03"},
					{Type: PropertyBool, NameHash: HashName("enabled"), Value: true},
					{Type: PropertyInt, NameHash: HashName("team"), Value: int32(-3)},
					{Type: PropertyUint, NameHash: HashName("uid"), Value: uint32(9)},
					{Type: PropertyFloat, NameHash: HashName("radius"), Value: float32(2.5)},
				},
			},
			{
				ClassnameHash: moverHash,
				Handle:        101,
				Parent:        100,
				Sibling:       NoHandle,
				Child:         NoHandle,
				Flags:         4,
				Num:           1,
				Properties: []Property{
					{Type: PropertyVec3, NameHash: HashName("just_pos"), Value: geom.NewVec3(1, 2, 3)},
					{Type: PropertyMatrix, NameHash: HashName("color"), Value: Matrix33{1, 0, 0, 0, 1, 0, 0, 0, 1}},
					{
						Type:     PropertyTransform,
						NameHash: HashName("op"),
						Value: Transform{
							Position: geom.NewVec3(4, 5, 6),
							Rotation: Matrix33{0, 1, 0, 1, 0, 0, 0, 0, 1},
						},
					},
					{Type: PropertyBuffer, NameHash: 12345, Value: []byte{1, 2, 3}},
				},
			},
			{
				ClassnameHash: 999,
				Handle:        102,
				Parent:        NoHandle,
				Sibling:       NoHandle,
				Child:         NoHandle,
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	data, err := Marshal(sampleZone())
	require.NoError(t, err)

	zone, err := Read(data, "terr01.rfgzone_pc", testClasses)
	require.NoError(t, err)

	assert.Equal(t, "terr01.rfgzone_pc", zone.Name)
	assert.Equal(t, uint32(3), zone.Header.NumObjects)
	assert.Equal(t, []uint32{100, 101, 102}, zone.Handles)
	require.Len(t, zone.Objects, 3)

	first := zone.Objects[0]
	assert.Equal(t, "obj_zone", first.Classname)
	assert.Equal(t, geom.NewVec3(0, 10, 10), first.Center())
	assert.Equal(t, "terrain_file_name", first.Properties[0].Name)
	assert.Equal(t, "terr01_05_03", first.Properties[0].Value)
	assert.Equal(t, true, first.Properties[1].Value)
	assert.Equal(t, int32(-3), first.Properties[2].Value)
	assert.Equal(t, uint32(9), first.Properties[3].Value)
	assert.Equal(t, float32(2.5), first.Properties[4].Value)

	second := zone.Objects[1]
	assert.Equal(t, "rfg_mover", second.Classname)
	assert.Equal(t, uint16(4), second.Flags)
	assert.Equal(t, geom.NewVec3(1, 2, 3), second.Properties[0].Value)
	assert.Equal(t, Matrix33{1, 0, 0, 0, 1, 0, 0, 0, 1}, second.Properties[1].Value)
	assert.Equal(t, "op", second.Properties[2].Name)
	assert.Equal(t, geom.NewVec3(4, 5, 6), second.Properties[2].Value.(Transform).Position)
	assert.Equal(t, "unknown_12345", second.Properties[3].Name)
	assert.Equal(t, []byte{1, 2, 3}, second.Properties[3].Value)

	assert.Equal(t, UnknownClass, zone.Objects[2].Classname)

	again, err := Marshal(zone)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestProperties(t *testing.T) {
	data, err := Marshal(sampleZone())
	require.NoError(t, err)
	zone, err := Read(data, "terr01.rfgzone_pc", testClasses)
	require.NoError(t, err)

	object := zone.GetSingleObject("obj_zone")
	require.NotNil(t, object)

	name := object.StringProperty("terrain_file_name")
	require.False(t, opt.IsNone(name))
	assert.Equal(t, "terr01_05_03", name.Value)

	assert.True(t, opt.IsNone(object.StringProperty("radius")))
	assert.True(t, opt.IsNone(object.Property("missing")))

	property := object.Property("radius")
	require.False(t, opt.IsNone(property))
	property.Value.Edited = true
	assert.True(t, object.Properties[4].Edited)

	assert.Nil(t, zone.GetSingleObject("navpoint"))
	assert.Len(t, zone.ObjectsOfClass("rfg_mover"), 1)

	assert.Equal(t, "Parker", zone.DistrictName(map[uint32]string{77: "Parker"}))
	assert.Equal(t, "unknown", zone.DistrictName(nil))
}

func TestStringTrailingNuls(t *testing.T) {
	w := binio.NewWriter()
	require.NoError(t, w.Put(Header{Signature: Signature, Version: Version, NumObjects: 1}))

	props := binio.NewWriter()
	props.PutUint16(uint16(PropertyString))
	props.PutUint16(8)
	props.PutUint32(HashName("terrain_file_name"))
	props.PutFixedString("terr", 8)

	require.NoError(t, w.Put(objectHeader{
		ClassnameHash: objZoneHash,
		Parent:        NoHandle,
		NumProps:      1,
		PropBlockSize: uint16(props.Len()),
	}))
	w.PutBytes(props.Bytes())

	zone, err := Read(w.Bytes(), "z", testClasses)
	require.NoError(t, err)
	assert.Equal(t, "terr", zone.Objects[0].StringProperty("terrain_file_name").Value)
}

func TestHashName(t *testing.T) {
	assert.Equal(t, HashName("Terrain_File_Name"), HashName("terrain_file_name"))
	assert.NotEqual(t, HashName("op"), HashName("po"))
	assert.Equal(t, uint32(0), HashName(""))
	assert.Equal(t, "district", PropertyName(HashName("district")))
}

func TestFormatErrors(t *testing.T) {
	good, err := Marshal(sampleZone())
	require.NoError(t, err)

	t.Run("signature", func(t *testing.T) {
		data := append([]byte{}, good...)
		data[0] = 0
		_, err := Read(data, "z", nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		for _, cut := range []int{3, HeaderSize, HeaderSize + 8, len(good) - 1} {
			_, err := Read(good[:cut], "z", nil)
			assert.ErrorIs(t, err, ErrFormat, "cut at %d", cut)
			assert.ErrorIs(t, err, binio.ErrFormat, "cut at %d", cut)
		}
	})

	t.Run("huge counts", func(t *testing.T) {
		w := binio.NewWriter()
		require.NoError(t, w.Put(Header{Signature: Signature, Version: Version, NumObjects: 0xFFFFFFF}))
		_, err := Read(w.Bytes(), "z", nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	single := func(kind PropertyType, size uint16, value []byte) []byte {
		w := binio.NewWriter()
		require.NoError(t, w.Put(Header{Signature: Signature, Version: Version, NumObjects: 1}))

		props := binio.NewWriter()
		props.PutUint16(uint16(kind))
		props.PutUint16(size)
		props.PutUint32(1)
		props.PutBytes(value)

		require.NoError(t, w.Put(objectHeader{NumProps: 1, PropBlockSize: uint16(props.Len())}))
		w.PutBytes(props.Bytes())
		return w.Bytes()
	}

	t.Run("size mismatch", func(t *testing.T) {
		_, err := Read(single(PropertyFloat, 2, []byte{0, 0}), "z", nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Read(single(PropertyType(42), 4, []byte{0, 0, 0, 0}), "z", nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("value past block", func(t *testing.T) {
		_, err := Read(single(PropertyString, 40, []byte("abc")), "z", nil)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestHierarchy(t *testing.T) {
	zone := &Zone{
		Objects: []Object{
			{Handle: 1, Parent: NoHandle},
			{Handle: 2, Parent: 1},
			{Handle: 3, Parent: 2},
			// Points at itself
			{Handle: 4, Parent: 4},
			// Parent does not exist
			{Handle: 5, Parent: 50},
			// 6 and 7 point at each other
			{Handle: 6, Parent: 7},
			{Handle: 7, Parent: 6},
		},
	}

	zone.GenerateObjectHierarchy()

	parents := make([]int, len(zone.Objects))
	for i, object := range zone.Objects {
		parents[i] = object.ParentIndex
	}
	assert.Equal(t, []int{-1, 0, 1, -1, -1, 6, -1}, parents)

	assert.Equal(t, []int{1}, zone.Objects[0].Children)
	assert.Equal(t, []int{2}, zone.Objects[1].Children)
	assert.Equal(t, []int{5}, zone.Objects[6].Children)
	assert.Equal(t, []int{0, 3, 4, 6}, zone.Roots())

	// Running it twice gives the same links
	zone.GenerateObjectHierarchy()
	assert.Equal(t, []int{1}, zone.Objects[0].Children)
}

func TestMarshalTooLarge(t *testing.T) {
	zoneWithBuffer := func(size int) *Zone {
		return &Zone{
			Objects: []Object{
				{
					ClassnameHash: moverHash,
					Handle:        1,
					Parent:        NoHandle,
					Properties: []Property{
						{
							Type:     PropertyBuffer,
							NameHash: HashName("data"),
							Value:    make([]byte, size),
						},
					},
				},
			},
		}
	}

	// 8 bytes of property header, so the object block is exactly 65535
	// bytes
	data, err := Marshal(zoneWithBuffer(math.MaxUint16 - ObjectHeaderSize - 8))
	require.NoError(t, err)
	zone, err := Read(data, "big.rfgzone_pc", testClasses)
	require.NoError(t, err)
	assert.Equal(t, uint16(math.MaxUint16), zone.Objects[0].BlockSize)

	// The property block alone fits in 16 bits but the object does not
	_, err = Marshal(zoneWithBuffer(65492))
	assert.ErrorIs(t, err, ErrTooLarge)

	// The value does not fit its 16-bit size
	_, err = Marshal(zoneWithBuffer(math.MaxUint16 + 1))
	assert.ErrorIs(t, err, ErrTooLarge)
}
