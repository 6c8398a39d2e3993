package packfiletest

import (
	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/packfile"
)

func putSizedString(w *binio.Writer, value string) {
	w.PutUint16(uint16(len(value)))
	w.PutBytes([]byte(value))
}

// Asm encodes an .asm_pc manifest. Counts are taken from the slices.
func Asm(asm *packfile.AsmFile) []byte {
	w := binio.NewWriter()
	w.PutUint32(packfile.AsmSignature)
	w.PutUint16(packfile.AsmVersion)
	w.PutUint16(uint16(len(asm.Containers)))

	for _, container := range asm.Containers {
		putSizedString(w, container.Name)
		w.PutUint8(container.Type)
		w.PutUint16(container.Flags)
		w.PutUint16(uint16(len(container.Primitives)))
		w.PutUint32(container.DataOffset)
		w.PutUint32(uint32(len(container.PrimitiveSizes)))
		w.PutUint32(container.CompressedSize)
		for _, size := range container.PrimitiveSizes {
			w.PutUint32(size)
		}

		for _, primitive := range container.Primitives {
			putSizedString(w, primitive.Name)
			w.PutUint8(primitive.Type)
			w.PutUint8(primitive.Allocator)
			w.PutUint8(primitive.Flags)
			w.PutUint8(primitive.SplitExtIndex)
			w.PutUint32(primitive.HeaderSize)
			w.PutUint32(primitive.DataSize)
		}
	}

	return w.Bytes()
}
