package binio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer is the append-only counterpart to Reader. It only builds buffers
// in memory.
type Writer struct {
	buffer []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.buffer }
func (w *Writer) Len() int      { return len(w.buffer) }

func (w *Writer) Write(p []byte) (int, error) {
	w.buffer = append(w.buffer, p...)
	return len(p), nil
}

func (w *Writer) PutUint8(value uint8) {
	w.buffer = append(w.buffer, value)
}

func (w *Writer) PutUint16(value uint16) {
	w.buffer = binary.LittleEndian.AppendUint16(w.buffer, value)
}

func (w *Writer) PutUint32(value uint32) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, value)
}

func (w *Writer) PutUint64(value uint64) {
	w.buffer = binary.LittleEndian.AppendUint64(w.buffer, value)
}

func (w *Writer) PutInt16(value int16) { w.PutUint16(uint16(value)) }
func (w *Writer) PutInt32(value int32) { w.PutUint32(uint32(value)) }

func (w *Writer) PutFloat32(value float32) {
	w.PutUint32(math.Float32bits(value))
}

func (w *Writer) PutVec3(value [3]float32) {
	for _, component := range value {
		w.PutFloat32(component)
	}
}

// PutFixedString writes value NUL-padded (or truncated) to exactly n bytes.
func (w *Writer) PutFixedString(value string, n int) {
	b := make([]byte, n)
	copy(b, value)
	w.buffer = append(w.buffer, b...)
}

func (w *Writer) PutCString(value string) {
	w.buffer = append(w.buffer, value...)
	w.buffer = append(w.buffer, 0)
}

func (w *Writer) PutBytes(value []byte) {
	w.buffer = append(w.buffer, value...)
}

// Align pads with zeroes up to the next multiple of boundary.
func (w *Writer) Align(boundary int) {
	pad := AlignPad(len(w.buffer), boundary)
	w.buffer = append(w.buffer, make([]byte, pad)...)
}

// Put writes fixed-size values (or structs of them) in order.
func (w *Writer) Put(pieces ...any) error {
	for _, piece := range pieces {
		var buffer bytes.Buffer
		err := binary.Write(&buffer, binary.LittleEndian, piece)
		if err != nil {
			return err
		}
		w.buffer = append(w.buffer, buffer.Bytes()...)
	}

	return nil
}
