package terrain

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cfoust/forge/pkg/binio"
	"github.com/cfoust/forge/pkg/geom"
)

// findWord returns the index of the first 32-bit word at or after start
// that equals value, or -1. The buffer is scanned as raw words rather than
// through a Reader because terrain description files are large and this is
// the hot loop of decoding.
func findWord(data []byte, start int, value uint32) int {
	words := len(data) / 4
	for i := start; i < words; i++ {
		if binary.LittleEndian.Uint32(data[i*4:]) == value {
			return i
		}
	}
	return -1
}

// Decode reads the nine sub-meshes of a terrain tile. Each sub-mesh in the
// gpu file starts and ends with a hash that also appears as the second word
// of its description block in the cpu file.
func Decode(ctx context.Context, cpu, gpu []byte) (*Mesh9, error) {
	var mesh Mesh9

	cpuReader := binio.NewReader(cpu)
	gpuReader := binio.NewReader(gpu)
	word := 0

	for i := 0; i < NumSubmeshes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hash, err := gpuReader.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: submesh %d hash: %v", ErrFormat, i, err)
		}
		if hash == 0 {
			return nil, fmt.Errorf("%w: submesh %d has a zero hash", ErrFormat, i)
		}

		word = findWord(cpu, word, hash)
		// The hash is preceded by the block's version word
		if word < 1 {
			return nil, fmt.Errorf("%w: no description block for submesh %d hash %#x", ErrFormat, i, hash)
		}

		start := (word - 1) * 4
		err = cpuReader.SeekBeg(start)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}

		block, err := ReadMeshDataBlock(cpuReader)
		if err != nil {
			return nil, fmt.Errorf("submesh %d: %w", i, err)
		}
		word += (cpuReader.Position() - start) / 4

		if block.IndexBuffer.IndexSize != IndexSize {
			return nil, fmt.Errorf("%w: submesh %d has %d byte indices", ErrFormat, i, block.IndexBuffer.IndexSize)
		}
		if block.VertexBuffer.VertexStride0 != VertexStride {
			return nil, fmt.Errorf("%w: submesh %d has a %d byte vertex stride", ErrFormat, i, block.VertexBuffer.VertexStride0)
		}

		indices, err := readIndices(gpuReader, int(block.IndexBuffer.NumIndices))
		if err != nil {
			return nil, fmt.Errorf("%w: submesh %d indices: %v", ErrFormat, i, err)
		}

		vertices, err := readVertices(gpuReader, int(block.VertexBuffer.NumVertices))
		if err != nil {
			return nil, fmt.Errorf("%w: submesh %d vertices: %v", ErrFormat, i, err)
		}

		err = GenerateNormals(ctx, vertices, indices)
		if err != nil {
			return nil, err
		}

		end, err := gpuReader.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: submesh %d trailing hash: %v", ErrFormat, i, err)
		}
		if end != hash {
			return nil, fmt.Errorf("%w: submesh %d ends with %#x, want %#x", ErrFormat, i, end, hash)
		}

		mesh[i] = Submesh{
			Block:    block,
			Indices:  indices,
			Vertices: vertices,
		}
	}

	return &mesh, nil
}

func readIndices(r *binio.Reader, count int) ([]uint16, error) {
	err := r.Align(16)
	if err != nil {
		return nil, err
	}

	data, err := r.Slice(count * IndexSize)
	if err != nil {
		return nil, err
	}

	indices := make([]uint16, count)
	for i := range indices {
		indices[i] = binary.LittleEndian.Uint16(data[i*IndexSize:])
	}
	return indices, nil
}

func readVertices(r *binio.Reader, count int) ([]Vertex, error) {
	err := r.Align(16)
	if err != nil {
		return nil, err
	}

	data, err := r.Slice(count * VertexStride)
	if err != nil {
		return nil, err
	}

	vertices := make([]Vertex, count)
	for i := range vertices {
		offset := i * VertexStride
		vertices[i] = Vertex{
			X: int16(binary.LittleEndian.Uint16(data[offset:])),
			Y: int16(binary.LittleEndian.Uint16(data[offset+2:])),
			Z: int16(binary.LittleEndian.Uint16(data[offset+4:])),
			W: int16(binary.LittleEndian.Uint16(data[offset+6:])),
		}
	}
	return vertices, nil
}

// GenerateNormals fills in smooth vertex normals. Every run of three
// consecutive indices is treated as a triangle, its face normal is turned
// to point up, and each vertex gets the normalized sum of the normals of
// the faces it touches. Vertices that touch no face keep a zero normal.
func GenerateNormals(ctx context.Context, vertices []Vertex, indices []uint16) error {
	for i := range vertices {
		vertices[i].Normal = geom.Vec3{}
	}

	done := ctx.Done()
	for i := 0; i+2 < len(indices); i++ {
		select {
		case <-done:
			return ctx.Err()
		default:
		}

		a, b, c := int(indices[i]), int(indices[i+1]), int(indices[i+2])
		if a >= len(vertices) || b >= len(vertices) || c >= len(vertices) {
			return fmt.Errorf(
				"%w: triangle %d references vertex past %d",
				ErrFormat,
				i,
				len(vertices),
			)
		}

		v0 := vertices[a].Position()
		v1 := vertices[b].Position()
		v2 := vertices[c].Position()

		normal := v1.Sub(v0).Cross(v2.Sub(v1))
		// Flipping toward +Y gives the right result for terrain, which
		// never faces down.
		if normal.Y < 0 {
			normal = normal.Negate()
		}

		vertices[a].Normal = vertices[a].Normal.Add(normal)
		vertices[b].Normal = vertices[b].Normal.Add(normal)
		vertices[c].Normal = vertices[c].Normal.Add(normal)
	}

	for i := range vertices {
		vertices[i].Normal = vertices[i].Normal.Normalize()
	}

	return nil
}
