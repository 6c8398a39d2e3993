package zones

import (
	"errors"
	"fmt"
	"math"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"
)

// ErrTooLarge is returned by Marshal for objects whose sizes do not fit the
// 16-bit fields of the format.
var ErrTooLarge = errors.New("zones: too large to encode")

// Marshal encodes a zone in the layout Read accepts. Counts in the header
// are taken from the slices, not from Header.
func Marshal(zone *Zone) ([]byte, error) {
	w := binio.NewWriter()

	header := zone.Header
	header.Signature = Signature
	header.Version = Version
	header.NumHandles = uint32(len(zone.Handles))
	header.NumObjects = uint32(len(zone.Objects))

	err := w.Put(header)
	if err != nil {
		return nil, err
	}

	for _, handle := range zone.Handles {
		w.PutUint32(handle)
	}

	for i := range zone.Objects {
		err = writeObject(w, &zone.Objects[i])
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
	}

	return w.Bytes(), nil
}

func writeObject(w *binio.Writer, object *Object) error {
	w.Align(4)

	props := binio.NewWriter()
	for i := range object.Properties {
		err := writeProperty(props, &object.Properties[i])
		if err != nil {
			return fmt.Errorf("property %d: %w", i, err)
		}
	}

	if ObjectHeaderSize+props.Len() > math.MaxUint16 {
		return fmt.Errorf("%w: property block of %d bytes is too large", ErrTooLarge, props.Len())
	}

	header := objectHeader{
		ClassnameHash: object.ClassnameHash,
		Handle:        object.Handle,
		Bmin:          object.Bmin.Array(),
		Bmax:          object.Bmax.Array(),
		Flags:         object.Flags,
		BlockSize:     uint16(ObjectHeaderSize + props.Len()),
		Parent:        object.Parent,
		Sibling:       object.Sibling,
		Child:         object.Child,
		Num:           object.Num,
		NumProps:      uint16(len(object.Properties)),
		PropBlockSize: uint16(props.Len()),
	}

	err := w.Put(header)
	if err != nil {
		return err
	}

	w.PutBytes(props.Bytes())
	return nil
}

func writeProperty(w *binio.Writer, property *Property) error {
	w.Align(4)

	value := binio.NewWriter()
	switch v := property.Value.(type) {
	case bool:
		if v {
			value.PutUint8(1)
		} else {
			value.PutUint8(0)
		}
	case int32:
		value.PutInt32(v)
	case uint32:
		value.PutUint32(v)
	case float32:
		value.PutFloat32(v)
	case string:
		value.PutCString(v)
	case geom.Vec3:
		value.PutVec3(v.Array())
	case Matrix33:
		err := value.Put(v)
		if err != nil {
			return err
		}
	case Transform:
		err := value.Put(v.Position.Array(), v.Rotation)
		if err != nil {
			return err
		}
	case []byte:
		value.PutBytes(v)
	default:
		return fmt.Errorf("cannot encode %T as %s", v, property.Type)
	}

	if value.Len() > math.MaxUint16 {
		return fmt.Errorf("%w: %s value of %d bytes", ErrTooLarge, property.Type, value.Len())
	}

	width := property.Type.width()
	if width != -1 && width != value.Len() {
		return fmt.Errorf("%T does not encode as %s", property.Value, property.Type)
	}

	w.PutUint16(uint16(property.Type))
	w.PutUint16(uint16(value.Len()))
	w.PutUint32(property.NameHash)
	w.PutBytes(value.Bytes())
	return nil
}
