// Package terraintest builds terrain tile files for tests.
package terraintest

import (
	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/terrain"
)

type Submesh struct {
	Hash     uint32
	Indices  []uint16
	Vertices [][4]int16
}

// Flat returns a sub-mesh of one upward-facing triangle.
func Flat(hash uint32) Submesh {
	return Submesh{
		Hash:    hash,
		Indices: []uint16{0, 1, 2},
		Vertices: [][4]int16{
			{0, 0, 0, 1},
			{0, 0, 10, 1},
			{10, 0, 0, 1},
		},
	}
}

// Hash returns a sub-mesh hash that cannot be mistaken for any other word
// Build writes.
func Hash(seed uint32, submesh int) uint32 {
	return 0xA5000000 | (seed&0xFFFF)<<8 | uint32(submesh+1)
}

// Tile returns nine flat sub-meshes with hashes derived from seed.
func Tile(seed uint32) [terrain.NumSubmeshes]Submesh {
	var tile [terrain.NumSubmeshes]Submesh
	for i := range tile {
		tile[i] = Flat(Hash(seed, i))
	}
	return tile
}

// Build encodes the cpu and gpu files of a tile.
func Build(submeshes [terrain.NumSubmeshes]Submesh) (cpu, gpu []byte) {
	c := binio.NewWriter()
	g := binio.NewWriter()

	// Real files carry a header before the first block
	c.PutBytes(make([]byte, 32))

	for _, submesh := range submeshes {
		block := terrain.MeshDataBlock{
			Version:          1,
			VerificationHash: submesh.Hash,
			VertexBuffer: terrain.VertexBufferDesc{
				NumVertices:   uint32(len(submesh.Vertices)),
				VertexStride0: terrain.VertexStride,
			},
			IndexBuffer: terrain.IndexBufferDesc{
				NumIndices: uint32(len(submesh.Indices)),
				IndexSize:  terrain.IndexSize,
				NumBlocks:  1,
			},
			Submeshes: []terrain.SubmeshDesc{
				{NumRenderBlocks: 1},
			},
			RenderBlocks: []terrain.RenderBlock{
				{NumIndices: uint32(len(submesh.Indices))},
			},
		}

		err := block.Put(c)
		if err != nil {
			panic(err)
		}

		g.PutUint32(submesh.Hash)
		g.Align(16)
		for _, index := range submesh.Indices {
			g.PutUint16(index)
		}
		g.Align(16)
		for _, vertex := range submesh.Vertices {
			for _, component := range vertex {
				g.PutInt16(component)
			}
		}
		g.PutUint32(submesh.Hash)
	}

	return c.Bytes(), g.Bytes()
}
