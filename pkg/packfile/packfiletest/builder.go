// Package packfiletest builds packfiles in memory for tests.
package packfiletest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/packfile"

	"github.com/klauspost/compress/zlib"
)

type File struct {
	Name string
	Data []byte
}

type Builder struct {
	Name       string
	Compressed bool
	Condensed  bool
	files      []File
}

func New(name string) *Builder {
	return &Builder{Name: name}
}

func (b *Builder) Add(name string, data []byte) *Builder {
	b.files = append(b.files, File{Name: name, Data: data})
	return b
}

func (b *Builder) WithCompression(compressed, condensed bool) *Builder {
	b.Compressed = compressed
	b.Condensed = condensed
	return b
}

func deflate(data []byte) []byte {
	var buffer bytes.Buffer
	w := zlib.NewWriter(&buffer)
	_, err := w.Write(data)
	if err != nil {
		panic(err)
	}
	err = w.Close()
	if err != nil {
		panic(err)
	}
	return buffer.Bytes()
}

// Build lays the archive out the way the game writes it.
func (b *Builder) Build() []byte {
	var flags uint32
	if b.Compressed {
		flags |= packfile.FlagCompressed
	}
	if b.Condensed {
		flags |= packfile.FlagCondensed
	}

	names := binio.NewWriter()
	entries := make([]packfile.Entry, len(b.files))
	data := binio.NewWriter()

	var condensed []byte
	for i, file := range b.files {
		entry := &entries[i]
		entry.NameOffset = uint32(names.Len())
		entry.NameHash = crc32.ChecksumIEEE([]byte(strings.ToLower(file.Name)))
		entry.DataSize = uint32(len(file.Data))
		entry.CompressedDataSize = packfile.NotCompressed
		names.PutCString(file.Name)

		switch {
		case b.Compressed && b.Condensed:
			entry.DataOffset = uint32(len(condensed))
			condensed = append(condensed, file.Data...)
		case b.Compressed:
			compressed := deflate(file.Data)
			entry.DataOffset = uint32(data.Len())
			entry.CompressedDataSize = uint32(len(compressed))
			data.PutBytes(compressed)
			data.Align(packfile.BlockAlignment)
		default:
			entry.DataOffset = uint32(data.Len())
			data.PutBytes(file.Data)
			data.Align(16)
		}
	}

	header := packfile.Header{
		Signature:          packfile.Signature,
		Version:            packfile.Version,
		Flags:              flags,
		NumberOfSubfiles:   uint32(len(b.files)),
		EntryBlockSize:     uint32(len(b.files) * packfile.EntrySize),
		NameBlockSize:      uint32(names.Len()),
		CompressedDataSize: packfile.NotCompressed,
	}
	copy(header.ShortName[:], b.Name)

	if b.Compressed && b.Condensed {
		header.DataSize = uint32(len(condensed))
		compressed := deflate(condensed)
		header.CompressedDataSize = uint32(len(compressed))
		data.PutBytes(compressed)
	} else {
		header.DataSize = uint32(data.Len())
		if b.Compressed {
			header.CompressedDataSize = uint32(data.Len())
		}
	}

	out := binio.NewWriter()
	mustPut(out, header)
	out.Align(packfile.BlockAlignment)
	for _, entry := range entries {
		mustPut(out, entry)
	}
	out.Align(packfile.BlockAlignment)
	out.PutBytes(names.Bytes())
	out.Align(packfile.BlockAlignment)
	out.PutBytes(data.Bytes())

	raw := out.Bytes()
	binary.LittleEndian.PutUint32(raw[fileSizeOffset:], uint32(len(raw)))

	return raw
}

// Offset of Header.FileSize.
const fileSizeOffset = 4 + 4 + 65 + 256 + 3 + 4 + 4 + 4

func mustPut(w *binio.Writer, value any) {
	err := w.Put(value)
	if err != nil {
		panic(err)
	}
}
