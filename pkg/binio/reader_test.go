package binio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedReads(t *testing.T) {
	w := NewWriter()
	w.PutUint8(7)
	w.PutUint16(0xBEEF)
	w.PutUint32(0xDEADBEEF)
	w.PutInt32(-5)
	w.PutFloat32(1.5)
	w.PutVec3([3]float32{1, 2, 3})
	w.PutCString("zone")
	w.PutFixedString("abc", 8)

	r := NewReader(w.Bytes())

	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	i32, err := r.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-5), i32)

	f, err := r.Float32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	v, err := r.Vec3()
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 2, 3}, v)

	s, err := r.CString()
	require.NoError(t, err)
	assert.Equal(t, "zone", s)

	fixed, err := r.FixedString(8)
	require.NoError(t, err)
	assert.Equal(t, "abc", fixed)

	assert.Equal(t, 0, r.Remaining())
}

func TestBoundsChecks(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})

	_, err := r.Uint32()
	assert.ErrorIs(t, err, ErrFormat)
	// A failed read must not move the cursor
	assert.Equal(t, 0, r.Position())

	_, err = r.Seek(4, io.SeekStart)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = r.Seek(-1, io.SeekEnd)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Position())

	assert.ErrorIs(t, r.Skip(2), ErrFormat)

	_, err = NewReader([]byte("abc")).CString()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestAlign(t *testing.T) {
	r := NewReader(make([]byte, 64))

	require.NoError(t, r.Align(16))
	assert.Equal(t, 0, r.Position())

	require.NoError(t, r.Skip(3))
	require.NoError(t, r.Align(16))
	assert.Equal(t, 16, r.Position())

	require.NoError(t, r.Skip(1))
	require.NoError(t, r.Align(4))
	assert.Equal(t, 20, r.Position())

	w := NewWriter()
	w.PutUint8(1)
	w.Align(2048)
	assert.Equal(t, 2048, w.Len())
}

func TestStructGet(t *testing.T) {
	type header struct {
		Magic   [4]byte
		Version uint32
		Count   uint16
		Flags   uint16
	}

	before := header{Magic: [4]byte{'T', 'E', 'S', 'T'}, Version: 3, Count: 9, Flags: 2}

	w := NewWriter()
	require.NoError(t, w.Put(before))
	assert.Equal(t, 12, w.Len())

	var after header
	r := NewReader(w.Bytes())
	require.NoError(t, r.Get(&after))
	assert.Equal(t, before, after)

	var again header
	assert.ErrorIs(t, r.Get(&again), ErrFormat)
}
