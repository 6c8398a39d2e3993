// Package terrain decodes low LOD terrain tiles. Every tile is a pair of
// files: a .cterrain_pc holding mesh descriptions and a .gterrain_pc
// holding index and vertex buffers for its nine sub-meshes.
package terrain

import (
	"fmt"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"
)

const (
	// Each tile is stitched together from this many meshes.
	NumSubmeshes = 9

	IndexSize    = 2
	VertexStride = 8

	CpuExtension      = ".cterrain_pc"
	GpuExtension      = ".gterrain_pc"
	BlendCpuSuffix    = "comb.cvbm_pc"
	BlendGpuExtension = ".gvbm_pc"
)

var ErrFormat = fmt.Errorf("terrain: %w", binio.ErrFormat)

type VertexBufferDesc struct {
	NumVertices   uint32
	VertexStride0 uint8
	VertexFormat  uint8
	NumUvChannels uint8
	VertexStride1 uint8
	VertexOffset  uint32
}

type IndexBufferDesc struct {
	NumIndices    uint32
	IndicesOffset uint32
	IndexSize     uint8
	PrimitiveType uint8
	NumBlocks     uint16
}

type SubmeshDesc struct {
	NumRenderBlocks    uint32
	Offset             [3]float32
	Bmin               [3]float32
	Bmax               [3]float32
	RenderBlocksOffset uint32
}

type RenderBlock struct {
	MaterialMapIndex uint16
	_                uint16
	StartIndex       uint32
	NumIndices       uint32
	MinIndex         uint32
	MaxIndex         uint32
}

type meshHeader struct {
	Version          uint32
	VerificationHash uint32
	CpuDataSize      uint32
	GpuDataSize      uint32
	NumSubmeshes     uint32
	SubmeshesOffset  uint32
	VertexBuffer     VertexBufferDesc
	IndexBuffer      IndexBufferDesc
}

// MeshDataBlock describes the layout of one sub-mesh's buffers.
type MeshDataBlock struct {
	Version          uint32
	VerificationHash uint32
	CpuDataSize      uint32
	GpuDataSize      uint32
	SubmeshesOffset  uint32
	VertexBuffer     VertexBufferDesc
	IndexBuffer      IndexBufferDesc
	Submeshes        []SubmeshDesc
	RenderBlocks     []RenderBlock
}

// ReadMeshDataBlock decodes a description block at the reader's position,
// including the trailing copy of the verification hash.
func ReadMeshDataBlock(r *binio.Reader) (*MeshDataBlock, error) {
	var header meshHeader
	err := r.Get(&header)
	if err != nil {
		return nil, fmt.Errorf("%w: mesh header: %v", ErrFormat, err)
	}

	// Everything below is counted by the file; bound it by what is left
	if int(header.NumSubmeshes)*44 > r.Remaining() {
		return nil, fmt.Errorf("%w: %d submeshes do not fit", ErrFormat, header.NumSubmeshes)
	}

	block := &MeshDataBlock{
		Version:          header.Version,
		VerificationHash: header.VerificationHash,
		CpuDataSize:      header.CpuDataSize,
		GpuDataSize:      header.GpuDataSize,
		SubmeshesOffset:  header.SubmeshesOffset,
		VertexBuffer:     header.VertexBuffer,
		IndexBuffer:      header.IndexBuffer,
		Submeshes:        make([]SubmeshDesc, header.NumSubmeshes),
	}

	numBlocks := 0
	for i := range block.Submeshes {
		err = r.Get(&block.Submeshes[i])
		if err != nil {
			return nil, fmt.Errorf("%w: submesh %d: %v", ErrFormat, i, err)
		}
		numBlocks += int(block.Submeshes[i].NumRenderBlocks)
	}

	if numBlocks*20 > r.Remaining() {
		return nil, fmt.Errorf("%w: %d render blocks do not fit", ErrFormat, numBlocks)
	}

	block.RenderBlocks = make([]RenderBlock, numBlocks)
	for i := range block.RenderBlocks {
		err = r.Get(&block.RenderBlocks[i])
		if err != nil {
			return nil, fmt.Errorf("%w: render block %d: %v", ErrFormat, i, err)
		}
	}

	err = r.Align(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	trailing, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: trailing hash: %v", ErrFormat, err)
	}
	if trailing != block.VerificationHash {
		return nil, fmt.Errorf(
			"%w: mesh description ends with %#x, want %#x",
			ErrFormat,
			trailing,
			block.VerificationHash,
		)
	}

	return block, nil
}

// Put encodes the block in the layout ReadMeshDataBlock reads. The number
// of render blocks must match the submesh counts.
func (m *MeshDataBlock) Put(w *binio.Writer) error {
	header := meshHeader{
		Version:          m.Version,
		VerificationHash: m.VerificationHash,
		CpuDataSize:      m.CpuDataSize,
		GpuDataSize:      m.GpuDataSize,
		NumSubmeshes:     uint32(len(m.Submeshes)),
		SubmeshesOffset:  m.SubmeshesOffset,
		VertexBuffer:     m.VertexBuffer,
		IndexBuffer:      m.IndexBuffer,
	}

	err := w.Put(header)
	if err != nil {
		return err
	}

	for _, submesh := range m.Submeshes {
		err = w.Put(submesh)
		if err != nil {
			return err
		}
	}

	for _, block := range m.RenderBlocks {
		err = w.Put(block)
		if err != nil {
			return err
		}
	}

	w.Align(4)
	w.PutUint32(m.VerificationHash)
	return nil
}

// Vertex is a terrain vertex position with a generated normal.
type Vertex struct {
	X, Y, Z, W int16
	Normal     geom.Vec3
}

func (v Vertex) Position() geom.Vec3 {
	return geom.NewVec3(float32(v.X), float32(v.Y), float32(v.Z))
}

type Submesh struct {
	Block    *MeshDataBlock
	Indices  []uint16
	Vertices []Vertex
}

type Mesh9 [NumSubmeshes]Submesh

type BlendTexture struct {
	Name   string
	Width  int
	Height int
	Format uint16
	Data   []byte
}

// Instance is one decoded terrain tile placed in the world.
type Instance struct {
	Name         string
	Position     geom.Vec3
	Meshes       Mesh9
	BlendTexture *BlendTexture

	// Set once a consumer has taken the instance's buffers.
	RenderDataInitialized bool
}
