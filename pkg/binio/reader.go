// Package binio provides the little-endian byte cursor used by every
// decoder in forge. Reads are bounds-checked and fail with ErrFormat
// instead of panicking on truncated input.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrFormat = errors.New("malformed binary data")

type Reader struct {
	data     []byte
	position int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Len() int       { return len(r.data) }
func (r *Reader) Position() int  { return r.position }
func (r *Reader) Remaining() int { return len(r.data) - r.position }

// Data returns the whole underlying buffer regardless of the cursor.
func (r *Reader) Data() []byte { return r.data }

func (r *Reader) outOfBounds(n int) error {
	return fmt.Errorf(
		"%w: read of %d bytes at offset %d exceeds length %d",
		ErrFormat,
		n,
		r.position,
		len(r.data),
	)
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, r.outOfBounds(n)
	}
	value := r.data[r.position : r.position+n]
	r.position += n
	return value, nil
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(r.position) + offset
	case io.SeekEnd:
		target = int64(len(r.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if target < 0 || target > int64(len(r.data)) {
		return 0, fmt.Errorf("%w: seek to %d outside [0, %d]", ErrFormat, target, len(r.data))
	}

	r.position = int(target)
	return target, nil
}

func (r *Reader) SeekBeg(offset int) error {
	_, err := r.Seek(int64(offset), io.SeekStart)
	return err
}

func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Align moves the cursor forward to the next multiple of boundary.
func (r *Reader) Align(boundary int) error {
	return r.Skip(AlignPad(r.position, boundary))
}

// AlignPad returns the number of bytes needed to move position to the next
// multiple of boundary.
func AlignPad(position int, boundary int) int {
	if boundary <= 1 {
		return 0
	}
	remainder := position % boundary
	if remainder == 0 {
		return 0
	}
	return boundary - remainder
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.Remaining() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, r.data[r.position:])
	r.position += n
	return n, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) Int16() (int16, error) {
	value, err := r.Uint16()
	return int16(value), err
}

func (r *Reader) Int32() (int32, error) {
	value, err := r.Uint32()
	return int32(value), err
}

func (r *Reader) Float32() (float32, error) {
	value, err := r.Uint32()
	return math.Float32frombits(value), err
}

func (r *Reader) Vec3() ([3]float32, error) {
	var out [3]float32
	for i := range out {
		value, err := r.Float32()
		if err != nil {
			return out, err
		}
		out[i] = value
	}
	return out, nil
}

// Bytes copies the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Slice returns a view of the next n bytes without copying. The view
// aliases the reader's buffer.
func (r *Reader) Slice(n int) ([]byte, error) {
	return r.take(n)
}

// FixedString reads n bytes and trims everything from the first NUL.
func (r *Reader) FixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i != -1 {
		b = b[:i]
	}
	return string(b), nil
}

// CString reads a NUL-terminated string and consumes the terminator.
func (r *Reader) CString() (string, error) {
	rest := r.data[r.position:]
	end := bytes.IndexByte(rest, 0)
	if end == -1 {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrFormat, r.position)
	}
	value := string(rest[:end])
	r.position += end + 1
	return value, nil
}

// Get reads fixed-size values (or structs of them) in order.
func (r *Reader) Get(pieces ...any) error {
	for _, piece := range pieces {
		size := binary.Size(piece)
		if size < 0 {
			return fmt.Errorf("cannot decode value of type %T", piece)
		}

		b, err := r.take(size)
		if err != nil {
			return err
		}

		err = binary.Read(bytes.NewReader(b), binary.LittleEndian, piece)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}

	return nil
}
