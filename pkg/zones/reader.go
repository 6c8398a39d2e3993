package zones

import (
	"fmt"
	"strings"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"
)

const UnknownClass = "unknown"

// ClassNamer resolves class name hashes. Unregistered hashes decode as
// UnknownClass.
type ClassNamer interface {
	NameOf(hash uint32) (string, bool)
}

// Read decodes a zone file. It does not link objects together; call
// GenerateObjectHierarchy for that.
func Read(data []byte, name string, classes ClassNamer) (*Zone, error) {
	r := binio.NewReader(data)
	zone := &Zone{Name: name}

	err := r.Get(&zone.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrFormat, name, err)
	}

	header := &zone.Header
	if header.Signature != Signature {
		return nil, fmt.Errorf("%w: %s: bad signature %#x", ErrFormat, name, header.Signature)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrFormat, name, header.Version)
	}

	// Both counts come from the file, so check them against what is left
	// before allocating.
	if int(header.NumHandles)*4 > r.Remaining() {
		return nil, fmt.Errorf("%w: %s: %d handles do not fit", ErrFormat, name, header.NumHandles)
	}
	zone.Handles = make([]uint32, header.NumHandles)
	for i := range zone.Handles {
		zone.Handles[i], err = r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: handle %d: %v", ErrFormat, name, i, err)
		}
	}

	if int(header.NumObjects)*ObjectHeaderSize > r.Remaining() {
		return nil, fmt.Errorf("%w: %s: %d objects do not fit", ErrFormat, name, header.NumObjects)
	}
	zone.Objects = make([]Object, header.NumObjects)
	for i := range zone.Objects {
		err = readObject(r, &zone.Objects[i], classes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: object %d: %v", ErrFormat, name, i, err)
		}
	}

	return zone, nil
}

type objectHeader struct {
	ClassnameHash uint32
	Handle        uint32
	Bmin          [3]float32
	Bmax          [3]float32
	Flags         uint16
	BlockSize     uint16
	Parent        uint32
	Sibling       uint32
	Child         uint32
	Num           uint32
	NumProps      uint16
	PropBlockSize uint16
}

func readObject(r *binio.Reader, object *Object, classes ClassNamer) error {
	err := r.Align(4)
	if err != nil {
		return err
	}

	var header objectHeader
	err = r.Get(&header)
	if err != nil {
		return err
	}

	*object = Object{
		ClassnameHash: header.ClassnameHash,
		Classname:     UnknownClass,
		Handle:        header.Handle,
		Bmin:          geom.FromArray(header.Bmin),
		Bmax:          geom.FromArray(header.Bmax),
		Flags:         header.Flags,
		BlockSize:     header.BlockSize,
		Parent:        header.Parent,
		Sibling:       header.Sibling,
		Child:         header.Child,
		Num:           header.Num,
		ParentIndex:   -1,
	}

	if classes != nil {
		if name, ok := classes.NameOf(header.ClassnameHash); ok {
			object.Classname = name
		}
	}

	block, err := r.Slice(int(header.PropBlockSize))
	if err != nil {
		return fmt.Errorf("property block: %v", err)
	}

	props := binio.NewReader(block)
	object.Properties = make([]Property, 0, header.NumProps)
	for i := 0; i < int(header.NumProps); i++ {
		property, err := readProperty(props)
		if err != nil {
			return fmt.Errorf("property %d: %v", i, err)
		}
		object.Properties = append(object.Properties, property)
	}

	return nil
}

func readProperty(r *binio.Reader) (Property, error) {
	err := r.Align(4)
	if err != nil {
		return Property{}, err
	}

	var header struct {
		Type     uint16
		Size     uint16
		NameHash uint32
	}
	err = r.Get(&header)
	if err != nil {
		return Property{}, err
	}

	property := Property{
		Type:     PropertyType(header.Type),
		NameHash: header.NameHash,
		Name:     PropertyName(header.NameHash),
	}

	width := property.Type.width()
	if width != -1 && width != int(header.Size) {
		return Property{}, fmt.Errorf(
			"%s %s declares %d bytes, want %d",
			property.Type,
			property.Name,
			header.Size,
			width,
		)
	}

	value, err := r.Slice(int(header.Size))
	if err != nil {
		return Property{}, err
	}
	v := binio.NewReader(value)

	switch property.Type {
	case PropertyBool:
		b, _ := v.Uint8()
		property.Value = b != 0
	case PropertyInt:
		property.Value, _ = v.Int32()
	case PropertyUint:
		property.Value, _ = v.Uint32()
	case PropertyFloat:
		property.Value, _ = v.Float32()
	case PropertyString:
		property.Value = strings.TrimRight(string(value), "\x00")
	case PropertyVec3:
		vec, _ := v.Vec3()
		property.Value = geom.FromArray(vec)
	case PropertyMatrix:
		var matrix Matrix33
		_ = v.Get(&matrix)
		property.Value = matrix
	case PropertyTransform:
		var transform struct {
			Position [3]float32
			Rotation Matrix33
		}
		_ = v.Get(&transform)
		property.Value = Transform{
			Position: geom.FromArray(transform.Position),
			Rotation: transform.Rotation,
		}
	case PropertyBuffer:
		buffer := make([]byte, len(value))
		copy(buffer, value)
		property.Value = buffer
	default:
		return Property{}, fmt.Errorf("unknown property type %d", header.Type)
	}

	return property, nil
}
