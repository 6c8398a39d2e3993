// Package zones decodes RFG zone files (.rfgzone_pc and .layer_pc). A zone
// is a flat list of map objects, each with a class, a bounding box and a
// bag of typed properties.
package zones

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"

	opt "github.com/repeale/fp-go/option"
)

const (
	Signature uint32 = 0x52465A54
	Version   uint32 = 36

	// Written in Parent, Sibling and Child when there is no such object.
	NoHandle uint32 = 0xFFFFFFFF

	HeaderSize         = 24
	ObjectHeaderSize   = 56
	PropertyHeaderSize = 8
)

var (
	ErrFormat   = fmt.Errorf("zones: %w", binio.ErrFormat)
	ErrNotFound = errors.New("zones: object not found")
)

type Header struct {
	Signature     uint32
	Version       uint32
	NumObjects    uint32
	NumHandles    uint32
	DistrictHash  uint32
	DistrictFlags uint32
}

type PropertyType uint16

const (
	PropertyBool PropertyType = iota + 1
	PropertyInt
	PropertyUint
	PropertyString
	PropertyFloat
	PropertyVec3
	PropertyMatrix
	PropertyTransform
	PropertyBuffer
)

func (t PropertyType) String() string {
	switch t {
	case PropertyBool:
		return "bool"
	case PropertyInt:
		return "int"
	case PropertyUint:
		return "uint"
	case PropertyString:
		return "string"
	case PropertyFloat:
		return "float"
	case PropertyVec3:
		return "vec3"
	case PropertyMatrix:
		return "matrix33"
	case PropertyTransform:
		return "transform"
	case PropertyBuffer:
		return "buffer"
	}
	return fmt.Sprintf("type_%d", uint16(t))
}

// width is the encoded size of fixed-width property types, or -1.
func (t PropertyType) width() int {
	switch t {
	case PropertyBool:
		return 1
	case PropertyInt, PropertyUint, PropertyFloat:
		return 4
	case PropertyVec3:
		return 12
	case PropertyMatrix:
		return 36
	case PropertyTransform:
		return 48
	}
	return -1
}

type Matrix33 [9]float32

type Transform struct {
	Position geom.Vec3
	Rotation Matrix33
}

// Property holds one decoded value. Value is a bool, int32, uint32, string,
// float32, geom.Vec3, Matrix33, Transform or []byte depending on Type.
type Property struct {
	Type     PropertyType
	NameHash uint32
	Name     string
	Value    any
	Edited   bool
}

type Object struct {
	ClassnameHash uint32
	Classname     string
	Handle        uint32
	Bmin          geom.Vec3
	Bmax          geom.Vec3
	Flags         uint16
	BlockSize     uint16
	Parent        uint32
	Sibling       uint32
	Child         uint32
	Num           uint32
	Properties    []Property

	// Filled by GenerateObjectHierarchy. -1 means no parent.
	ParentIndex int
	Children    []int

	Edited bool
}

func (o *Object) Center() geom.Vec3 {
	return geom.Center(o.Bmin, o.Bmax)
}

func (o *Object) Property(name string) opt.Option[*Property] {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return opt.Some(&o.Properties[i])
		}
	}
	return opt.None[*Property]()
}

// StringProperty returns the value of a string property without its
// trailing NULs.
func (o *Object) StringProperty(name string) opt.Option[string] {
	property := o.Property(name)
	if opt.IsNone(property) {
		return opt.None[string]()
	}

	value, ok := property.Value.Value.(string)
	if !ok {
		return opt.None[string]()
	}

	return opt.Some(strings.TrimRight(value, "\x00"))
}

type Zone struct {
	Name    string
	Header  Header
	Handles []uint32
	Objects []Object
}

// GetSingleObject returns the first object of the given class, or nil.
func (z *Zone) GetSingleObject(classname string) *Object {
	for i := range z.Objects {
		if z.Objects[i].Classname == classname {
			return &z.Objects[i]
		}
	}
	return nil
}

func (z *Zone) ObjectsOfClass(classname string) []*Object {
	var out []*Object
	for i := range z.Objects {
		if z.Objects[i].Classname == classname {
			out = append(out, &z.Objects[i])
		}
	}
	return out
}

// DistrictName resolves the zone's district through names.
func (z *Zone) DistrictName(names map[uint32]string) string {
	if name, ok := names[z.Header.DistrictHash]; ok {
		return name
	}
	return "unknown"
}

func (z *Zone) NumObjects() int {
	return len(z.Objects)
}
