package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCross(t *testing.T) {
	x := NewVec3(1, 0, 0)
	y := NewVec3(0, 1, 0)
	assert.Equal(t, NewVec3(0, 0, 1), x.Cross(y))
	assert.Equal(t, NewVec3(0, 0, -1), y.Cross(x))
}

func TestNormalize(t *testing.T) {
	v := NewVec3(3, 0, 4).Normalize()
	assert.InDelta(t, 1.0, v.Magnitude(), 1e-6)
	assert.InDelta(t, 0.6, v.X, 1e-6)

	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
}

func TestCenter(t *testing.T) {
	assert.Equal(t, NewVec3(1, 2, 3), Center(NewVec3(0, 0, 0), NewVec3(2, 4, 6)))
	assert.InDelta(t, 5, Distance(NewVec3(0, 0, 0), NewVec3(3, 4, 0)), 1e-6)
}
