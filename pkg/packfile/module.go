// Package packfile reads RFG packfiles (.vpp_pc and the nested .str2_pc
// streaming containers). Indexing reads the directory only; entry bodies are
// read and inflated on demand, into fresh buffers owned by the caller.
package packfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cfoust/forge/pkg/binio"
)

type Packfile struct {
	name string
	// Empty for containers that only exist in memory
	path string
	data []byte
	size int64

	Directory

	lookup    map[string]int
	dataStart int64
	// Absolute offset of each entry's stored bytes. For condensed
	// compressed archives every entry shares the stream at dataStart.
	offsets []int64
}

// Open indexes the packfile at path.
func Open(path string) (*Packfile, error) {
	p := &Packfile{
		name: filepath.Base(path),
		path: path,
	}

	err := p.Index()
	if err != nil {
		return nil, err
	}

	return p, nil
}

// OpenDirectory attaches a previously read directory to the packfile at
// path without parsing it again.
func OpenDirectory(path string, directory Directory) (*Packfile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	p := &Packfile{
		name: filepath.Base(path),
		path: path,
		size: info.Size(),
	}

	err = p.setDirectory(directory)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// FromBytes indexes a packfile that is already in memory, such as a
// .str2_pc extracted from its parent.
func FromBytes(name string, data []byte) (*Packfile, error) {
	p := &Packfile{
		name: name,
		data: data,
		size: int64(len(data)),
	}

	err := p.Index()
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Packfile) Name() string { return p.name }
func (p *Packfile) Path() string { return p.path }

func (p *Packfile) Entries() []Entry     { return p.Directory.Entries }
func (p *Packfile) EntryNames() []string { return p.Directory.Names }
func (p *Packfile) NumEntries() int      { return len(p.Directory.Entries) }

func (p *Packfile) Contains(name string) bool {
	_, ok := p.lookup[name]
	return ok
}

// Entry returns the directory entry for name.
func (p *Packfile) Entry(name string) (Entry, bool) {
	index, ok := p.lookup[name]
	if !ok {
		return Entry{}, false
	}
	return p.Directory.Entries[index], true
}

// readDirectory returns enough of the file to parse the directory. Entry
// bodies are not loaded for packfiles on disk.
func (p *Packfile) readDirectory() ([]byte, error) {
	if p.path == "" {
		return p.data, nil
	}

	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	p.size = info.Size()

	var header Header
	headerBytes := make([]byte, HeaderSize)
	_, err = io.ReadFull(file, headerBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: header truncated: %v", ErrFormat, err)
	}
	err = binio.NewReader(headerBytes).Get(&header)
	if err != nil {
		return nil, err
	}
	if header.Signature != Signature {
		return nil, fmt.Errorf("%w: bad signature %#x", ErrFormat, header.Signature)
	}

	end := directoryEnd(&header)
	if end > p.size {
		return nil, fmt.Errorf("%w: directory ends at %d past end of file %d", ErrFormat, end, p.size)
	}

	buffer := make([]byte, end)
	_, err = file.ReadAt(buffer, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return buffer, nil
}

func alignUp(offset int64) int64 {
	return offset + int64(binio.AlignPad(int(offset), BlockAlignment))
}

// directoryEnd is the offset of the data block.
func directoryEnd(header *Header) int64 {
	offset := alignUp(HeaderSize)
	offset = alignUp(offset + int64(header.NumberOfSubfiles)*EntrySize)
	offset = alignUp(offset + int64(header.NameBlockSize))
	return offset
}

// Index reads the packfile header, entry table and names, then decodes the
// archive's .asm_pc manifests.
func (p *Packfile) Index() error {
	data, err := p.readDirectory()
	if err != nil {
		return err
	}

	r := binio.NewReader(data)

	var directory Directory
	err = r.Get(&directory.Header)
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrFormat, err)
	}

	header := &directory.Header
	if header.Signature != Signature {
		return fmt.Errorf("%w: bad signature %#x", ErrFormat, header.Signature)
	}
	if header.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, header.Version)
	}

	err = r.SeekBeg(BlockAlignment)
	if err != nil {
		return fmt.Errorf("%w: entry block: %v", ErrFormat, err)
	}

	directory.Entries = make([]Entry, header.NumberOfSubfiles)
	for i := range directory.Entries {
		err = r.Get(&directory.Entries[i])
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrFormat, i, err)
		}
	}

	err = r.Align(BlockAlignment)
	if err != nil {
		return fmt.Errorf("%w: name block: %v", ErrFormat, err)
	}

	nameBlock, err := r.Slice(int(header.NameBlockSize))
	if err != nil {
		return fmt.Errorf("%w: name block: %v", ErrFormat, err)
	}

	directory.Names = make([]string, len(directory.Entries))
	names := binio.NewReader(nameBlock)
	for i, entry := range directory.Entries {
		err = names.SeekBeg(int(entry.NameOffset))
		if err != nil {
			return fmt.Errorf("%w: name of entry %d: %v", ErrFormat, i, err)
		}

		name, err := names.CString()
		if err != nil {
			return fmt.Errorf("%w: name of entry %d: %v", ErrFormat, i, err)
		}
		directory.Names[i] = name
	}

	err = p.setDirectory(directory)
	if err != nil {
		return err
	}

	return p.readAsmFiles()
}

// setDirectory validates a directory against the backing storage and
// computes where every entry's bytes live.
func (p *Packfile) setDirectory(directory Directory) error {
	header := &directory.Header
	if header.Signature != Signature || header.Version != Version {
		return fmt.Errorf("%w: bad signature or version", ErrFormat)
	}
	if len(directory.Entries) != len(directory.Names) {
		return fmt.Errorf("%w: %d entries but %d names", ErrFormat, len(directory.Entries), len(directory.Names))
	}

	dataStart := directoryEnd(header)
	offsets := make([]int64, len(directory.Entries))

	checkRange := func(i int, start int64, length uint32) error {
		if start+int64(length) > p.size {
			return fmt.Errorf(
				"%w: entry %q spans [%d, %d) past end of file %d",
				ErrFormat,
				directory.Names[i],
				start,
				start+int64(length),
				p.size,
			)
		}
		return nil
	}

	switch {
	case directory.Compressed() && directory.Condensed():
		if dataStart+int64(header.CompressedDataSize) > p.size {
			return fmt.Errorf("%w: compressed data block past end of file", ErrFormat)
		}
		for i, entry := range directory.Entries {
			if int64(entry.DataOffset)+int64(entry.DataSize) > int64(header.DataSize) {
				return fmt.Errorf("%w: entry %q outside data block", ErrFormat, directory.Names[i])
			}
			offsets[i] = dataStart
		}
	case directory.Compressed():
		offset := dataStart
		for i, entry := range directory.Entries {
			err := checkRange(i, offset, entry.CompressedDataSize)
			if err != nil {
				return err
			}
			offsets[i] = offset
			offset = alignUp(offset + int64(entry.CompressedDataSize))
		}
	default:
		for i, entry := range directory.Entries {
			offset := dataStart + int64(entry.DataOffset)
			err := checkRange(i, offset, entry.DataSize)
			if err != nil {
				return err
			}
			offsets[i] = offset
		}
	}

	lookup := make(map[string]int, len(directory.Names))
	for i, name := range directory.Names {
		if _, ok := lookup[name]; !ok {
			lookup[name] = i
		}
	}

	p.Directory = directory
	p.dataStart = dataStart
	p.offsets = offsets
	p.lookup = lookup
	return nil
}

type readerAt interface {
	io.ReaderAt
	io.Closer
}

type memoryReader struct {
	*bytes.Reader
}

func (memoryReader) Close() error { return nil }

func (p *Packfile) openStorage() (readerAt, error) {
	if p.path == "" {
		return memoryReader{bytes.NewReader(p.data)}, nil
	}

	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return file, nil
}

func readRange(storage io.ReaderAt, offset int64, length uint32) ([]byte, error) {
	buffer := make([]byte, length)
	_, err := storage.ReadAt(buffer, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d bytes at %d: %v", ErrIO, length, offset, err)
	}
	return buffer, nil
}

// extract returns the bodies of the entries at indices, in order.
func (p *Packfile) extract(indices []int) ([][]byte, error) {
	results := make([][]byte, len(indices))
	if len(indices) == 0 {
		return results, nil
	}

	storage, err := p.openStorage()
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	if p.Compressed() && p.Condensed() {
		compressed, err := readRange(storage, p.dataStart, p.Header.CompressedDataSize)
		if err != nil {
			return nil, err
		}

		block, err := inflate(compressed, p.Header.DataSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}

		for i, index := range indices {
			entry := p.Directory.Entries[index]
			body := make([]byte, entry.DataSize)
			copy(body, block[entry.DataOffset:entry.DataOffset+entry.DataSize])
			results[i] = body
		}

		return results, nil
	}

	for i, index := range indices {
		entry := p.Directory.Entries[index]
		offset := p.offsets[index]

		if !p.Compressed() {
			body, err := readRange(storage, offset, entry.DataSize)
			if err != nil {
				return nil, err
			}
			results[i] = body
			continue
		}

		compressed, err := readRange(storage, offset, entry.CompressedDataSize)
		if err != nil {
			return nil, err
		}

		body, err := inflate(compressed, entry.DataSize)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", p.name, p.Directory.Names[index], err)
		}
		results[i] = body
	}

	return results, nil
}

// ExtractAll returns the body of every entry keyed by name.
func (p *Packfile) ExtractAll() (map[string][]byte, error) {
	indices := make([]int, len(p.Directory.Entries))
	for i := range indices {
		indices[i] = i
	}

	bodies, err := p.extract(indices)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(bodies))
	for i, body := range bodies {
		name := p.Directory.Names[i]
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = body
	}

	return out, nil
}

// ExtractFiles returns the bodies of the named entries in a single pass
// over the archive.
func (p *Packfile) ExtractFiles(names ...string) (map[string][]byte, error) {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		index, ok := p.lookup[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, p.name, name)
		}
		indices = append(indices, index)
	}

	bodies, err := p.extract(indices)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(bodies))
	for i, body := range bodies {
		out[names[i]] = body
	}

	return out, nil
}

func (p *Packfile) ExtractSingleFile(name string) ([]byte, error) {
	index, ok := p.lookup[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, p.name, name)
	}

	bodies, err := p.extract([]int{index})
	if err != nil {
		return nil, err
	}

	return bodies[0], nil
}
