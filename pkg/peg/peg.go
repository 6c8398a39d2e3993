// Package peg reads version 10 texture containers. The header, entry table
// and names live in the cpu file (.cvbm_pc); pixel data lives in the gpu
// file (.gvbm_pc).
package peg

import (
	"errors"
	"fmt"

	"github.com/cfoust/forge/pkg/binio"
)

const (
	Signature  uint32 = 0x564B4547 // "GEKV"
	Version    uint16 = 10
	HeaderSize        = 24
	EntrySize         = 48
)

type Format uint16

const (
	FormatDXT1 Format = 400
	FormatDXT3 Format = 401
	FormatDXT5 Format = 402
	Format565  Format = 403
	Format1555 Format = 404
	Format4444 Format = 405
	Format888  Format = 406
	Format8888 Format = 407
)

func (f Format) String() string {
	switch f {
	case FormatDXT1:
		return "DXT1"
	case FormatDXT3:
		return "DXT3"
	case FormatDXT5:
		return "DXT5"
	case Format565:
		return "565"
	case Format1555:
		return "1555"
	case Format4444:
		return "4444"
	case Format888:
		return "888"
	case Format8888:
		return "8888"
	}
	return fmt.Sprintf("format(%d)", uint16(f))
}

var (
	ErrFormat      = fmt.Errorf("peg: %w", binio.ErrFormat)
	ErrUnsupported = errors.New("peg: unsupported bitmap format")
)

type Header struct {
	Signature          uint32
	Version            uint16
	Platform           uint16
	DirectoryBlockSize uint32
	DataBlockSize      uint32
	NumberOfBitmaps    uint16
	Flags              uint16
	TotalEntries       uint16
	AlignValue         uint16
}

type Entry struct {
	DataOffset      uint32
	Width           uint16
	Height          uint16
	BitmapFormat    Format
	SourceWidth     uint16
	AnimTilesWidth  uint16
	AnimTilesHeight uint16
	NumFrames       uint16
	Flags           uint16
	FilenameOffset  uint32
	SourceHeight    uint16
	Fps             uint8
	MipLevels       uint8
	FrameSize       uint32
	Next            uint32
	Previous        uint32
	Cache0          uint32
	Cache1          uint32
}

type Peg struct {
	Header
	Entries []Entry
	Names   []string

	gpu []byte
}

// Read decodes the texture table. The gpu buffer is kept, not copied.
func Read(cpu, gpu []byte) (*Peg, error) {
	r := binio.NewReader(cpu)

	var header Header
	err := r.Get(&header)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}

	if header.Signature != Signature {
		return nil, fmt.Errorf("%w: bad signature %#x", ErrFormat, header.Signature)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, header.Version)
	}

	count := int(header.NumberOfBitmaps)
	if count*EntrySize > r.Remaining() {
		return nil, fmt.Errorf("%w: %d entries do not fit", ErrFormat, count)
	}

	peg := &Peg{
		Header:  header,
		Entries: make([]Entry, count),
		Names:   make([]string, count),
		gpu:     gpu,
	}

	for i := range peg.Entries {
		err = r.Get(&peg.Entries[i])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrFormat, i, err)
		}
	}

	for i := range peg.Names {
		peg.Names[i], err = r.CString()
		if err != nil {
			return nil, fmt.Errorf("%w: name %d: %v", ErrFormat, i, err)
		}
	}

	return peg, nil
}

// Find returns the index of the texture with the given name, or -1.
func (p *Peg) Find(name string) int {
	for i, candidate := range p.Names {
		if candidate == name {
			return i
		}
	}
	return -1
}

// TextureData returns the first frame of texture i. The slice aliases the
// gpu buffer passed to Read.
func (p *Peg) TextureData(i int) ([]byte, error) {
	if i < 0 || i >= len(p.Entries) {
		return nil, fmt.Errorf("peg: texture %d out of range (%d)", i, len(p.Entries))
	}

	entry := p.Entries[i]
	start := int64(entry.DataOffset)
	end := start + int64(entry.FrameSize)
	if end > int64(len(p.gpu)) {
		return nil, fmt.Errorf(
			"%w: texture %d spans [%d, %d) past gpu file of %d bytes",
			ErrFormat,
			i,
			start,
			end,
			len(p.gpu),
		)
	}

	return p.gpu[start:end], nil
}
