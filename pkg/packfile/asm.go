package packfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cfoust/forge/pkg/binio"
)

// Asm files (.asm_pc) describe the .str2_pc containers of an archive and
// the primitives inside each one.
const (
	AsmExtension = ".asm_pc"

	AsmSignature uint32 = 0xBEEFFEED
	AsmVersion   uint16 = 5
)

type AsmPrimitive struct {
	Name          string
	Type          uint8
	Allocator     uint8
	Flags         uint8
	SplitExtIndex uint8
	HeaderSize    uint32
	DataSize      uint32
}

type AsmContainer struct {
	Name           string
	Type           uint8
	Flags          uint16
	DataOffset     uint32
	CompressedSize uint32
	PrimitiveSizes []uint32
	Primitives     []AsmPrimitive
}

type AsmFile struct {
	Name       string
	Version    uint16
	Containers []AsmContainer
}

func sizedString(r *binio.Reader) (string, error) {
	length, err := r.Uint16()
	if err != nil {
		return "", err
	}
	return r.FixedString(int(length))
}

func readAsmPrimitive(r *binio.Reader) (AsmPrimitive, error) {
	var primitive AsmPrimitive

	name, err := sizedString(r)
	if err != nil {
		return primitive, err
	}
	primitive.Name = name

	var fields struct {
		Type          uint8
		Allocator     uint8
		Flags         uint8
		SplitExtIndex uint8
		HeaderSize    uint32
		DataSize      uint32
	}
	err = r.Get(&fields)
	if err != nil {
		return primitive, err
	}

	primitive.Type = fields.Type
	primitive.Allocator = fields.Allocator
	primitive.Flags = fields.Flags
	primitive.SplitExtIndex = fields.SplitExtIndex
	primitive.HeaderSize = fields.HeaderSize
	primitive.DataSize = fields.DataSize
	return primitive, nil
}

func readAsmContainer(r *binio.Reader) (AsmContainer, error) {
	var container AsmContainer

	name, err := sizedString(r)
	if err != nil {
		return container, err
	}
	container.Name = name

	var fields struct {
		Type           uint8
		Flags          uint16
		PrimitiveCount uint16
		DataOffset     uint32
		SizeCount      uint32
		CompressedSize uint32
	}
	err = r.Get(&fields)
	if err != nil {
		return container, err
	}

	container.Type = fields.Type
	container.Flags = fields.Flags
	container.DataOffset = fields.DataOffset
	container.CompressedSize = fields.CompressedSize

	if int(fields.SizeCount)*4 > r.Remaining() {
		return container, fmt.Errorf("%d primitive sizes do not fit", fields.SizeCount)
	}
	container.PrimitiveSizes = make([]uint32, fields.SizeCount)
	for i := range container.PrimitiveSizes {
		container.PrimitiveSizes[i], err = r.Uint32()
		if err != nil {
			return container, err
		}
	}

	container.Primitives = make([]AsmPrimitive, 0, fields.PrimitiveCount)
	for i := 0; i < int(fields.PrimitiveCount); i++ {
		primitive, err := readAsmPrimitive(r)
		if err != nil {
			return container, fmt.Errorf("primitive %d: %v", i, err)
		}
		container.Primitives = append(container.Primitives, primitive)
	}

	return container, nil
}

// ReadAsm decodes an .asm_pc file.
func ReadAsm(name string, data []byte) (*AsmFile, error) {
	r := binio.NewReader(data)

	var header struct {
		Signature      uint32
		Version        uint16
		ContainerCount uint16
	}
	err := r.Get(&header)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrFormat, name, err)
	}
	if header.Signature != AsmSignature {
		return nil, fmt.Errorf("%w: %s: bad signature %#x", ErrFormat, name, header.Signature)
	}
	if header.Version != AsmVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrFormat, name, header.Version)
	}

	asm := &AsmFile{
		Name:       name,
		Version:    header.Version,
		Containers: make([]AsmContainer, 0, header.ContainerCount),
	}
	for i := 0; i < int(header.ContainerCount); i++ {
		container, err := readAsmContainer(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: container %d: %v", ErrFormat, name, i, err)
		}
		asm.Containers = append(asm.Containers, container)
	}

	return asm, nil
}

func isAsm(name string) bool {
	return strings.EqualFold(filepath.Ext(name), AsmExtension)
}

// readAsmFiles decodes every .asm_pc entry. Manifests that do not decode
// are left out.
func (p *Packfile) readAsmFiles() error {
	var indices []int
	for i, name := range p.Directory.Names {
		if isAsm(name) {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil
	}

	bodies, err := p.extract(indices)
	if err != nil {
		return err
	}

	p.Directory.AsmFiles = nil
	for i, body := range bodies {
		asm, err := ReadAsm(p.Directory.Names[indices[i]], body)
		if err != nil {
			continue
		}
		p.Directory.AsmFiles = append(p.Directory.AsmFiles, *asm)
	}

	return nil
}

// AsmFiles returns the decoded .asm_pc manifests of the archive.
func (p *Packfile) AsmFiles() []AsmFile {
	return p.Directory.AsmFiles
}

// AsmFile finds a manifest by name, ignoring case.
func (p *Packfile) AsmFile(name string) (*AsmFile, bool) {
	for i := range p.Directory.AsmFiles {
		if strings.EqualFold(p.Directory.AsmFiles[i].Name, name) {
			return &p.Directory.AsmFiles[i], true
		}
	}
	return nil, false
}
