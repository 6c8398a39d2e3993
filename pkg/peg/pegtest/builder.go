// Package pegtest builds texture containers for tests.
package pegtest

import (
	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/peg"
)

type texture struct {
	name   string
	width  uint16
	height uint16
	format peg.Format
	data   []byte
}

type Builder struct {
	textures []texture
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) Add(name string, width, height int, format peg.Format, data []byte) *Builder {
	b.textures = append(b.textures, texture{
		name:   name,
		width:  uint16(width),
		height: uint16(height),
		format: format,
		data:   data,
	})
	return b
}

// Build encodes the cpu and gpu files.
func (b *Builder) Build() (cpu, gpu []byte) {
	g := binio.NewWriter()
	entries := make([]peg.Entry, len(b.textures))
	for i, texture := range b.textures {
		g.Align(16)
		entries[i] = peg.Entry{
			DataOffset:   uint32(g.Len()),
			Width:        texture.width,
			Height:       texture.height,
			BitmapFormat: texture.format,
			SourceWidth:  texture.width,
			SourceHeight: texture.height,
			NumFrames:    1,
			MipLevels:    1,
			FrameSize:    uint32(len(texture.data)),
		}
		g.PutBytes(texture.data)
	}

	names := binio.NewWriter()
	for i, texture := range b.textures {
		entries[i].FilenameOffset = uint32(names.Len())
		names.PutCString(texture.name)
	}

	c := binio.NewWriter()
	mustPut(c, peg.Header{
		Signature:          peg.Signature,
		Version:            peg.Version,
		DirectoryBlockSize: uint32(peg.HeaderSize + len(entries)*peg.EntrySize + names.Len()),
		DataBlockSize:      uint32(g.Len()),
		NumberOfBitmaps:    uint16(len(entries)),
		TotalEntries:       uint16(len(entries)),
		AlignValue:         16,
	})
	for _, entry := range entries {
		mustPut(c, entry)
	}
	c.PutBytes(names.Bytes())

	return c.Bytes(), g.Bytes()
}

func mustPut(w *binio.Writer, value any) {
	if err := w.Put(value); err != nil {
		panic(err)
	}
}
