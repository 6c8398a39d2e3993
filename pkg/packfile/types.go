package packfile

import (
	"errors"
	"fmt"

	"github.com/cfoust/forge/pkg/binio"
)

const (
	Signature uint32 = 0x51890ACE
	Version   uint32 = 3

	// Every block in a packfile starts on a sector boundary.
	BlockAlignment = 2048

	// Written in CompressedDataSize by archives that are not compressed.
	NotCompressed uint32 = 0xFFFFFFFF

	HeaderSize = 364
	EntrySize  = 28
)

const (
	FlagCompressed uint32 = 1 << 0
	FlagCondensed  uint32 = 1 << 1
)

var (
	ErrNotFound = errors.New("packfile: entry not found")
	ErrFormat   = fmt.Errorf("packfile: %w", binio.ErrFormat)
	ErrIO       = errors.New("packfile: storage unreadable")
)

type Header struct {
	Signature          uint32
	Version            uint32
	ShortName          [65]byte
	PathName           [256]byte
	_                  [3]byte
	Flags              uint32
	Unknown            uint32
	NumberOfSubfiles   uint32
	FileSize           uint32
	EntryBlockSize     uint32
	NameBlockSize      uint32
	DataSize           uint32
	CompressedDataSize uint32
}

type Entry struct {
	NameOffset         uint32
	Sector             uint32
	DataOffset         uint32
	NameHash           uint32
	DataSize           uint32
	CompressedDataSize uint32
	PackagePtr         uint32
}

// Directory is everything Index reads from a packfile. It is what the VFS
// persists in its index cache.
type Directory struct {
	Header  Header
	Entries []Entry
	Names   []string
	// Decoded .asm_pc entries, so cached directories carry them too
	AsmFiles []AsmFile
}

func (d *Directory) Compressed() bool {
	return d.Header.Flags&FlagCompressed != 0
}

func (d *Directory) Condensed() bool {
	return d.Header.Flags&FlagCondensed != 0
}
