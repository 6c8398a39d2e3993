package vfs

import (
	"fmt"

	"github.com/cfoust/forge/pkg/packfile"
)

// FileHandle names one entry in the VFS. Entries inside a .str2_pc
// container carry the container's name in SubArchive.
type FileHandle struct {
	Archive    string
	SubArchive string
	Entry      string

	vfs *PackfileVFS
}

func (h FileHandle) Filename() string {
	return h.Entry
}

// ContainerName is the name of the archive that directly holds the entry.
func (h FileHandle) ContainerName() string {
	if h.SubArchive != "" {
		return h.SubArchive
	}
	return h.Archive
}

func (h FileHandle) String() string {
	if h.SubArchive != "" {
		return fmt.Sprintf("%s/%s/%s", h.Archive, h.SubArchive, h.Entry)
	}
	return fmt.Sprintf("%s/%s", h.Archive, h.Entry)
}

// Container returns the archive that directly holds the entry, indexing the
// .str2_pc container if it has not been yet.
func (h FileHandle) Container() (*packfile.Packfile, error) {
	if h.vfs == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}

	parent := h.vfs.GetPackfile(h.Archive)
	if parent == nil {
		return nil, fmt.Errorf("%w: packfile %s", ErrNotFound, h.Archive)
	}

	if h.SubArchive == "" {
		return parent, nil
	}

	return h.vfs.stream(parent, h.SubArchive)
}

// Get extracts the entry's bytes.
func (h FileHandle) Get() ([]byte, error) {
	container, err := h.Container()
	if err != nil {
		return nil, err
	}

	return container.ExtractSingleFile(h.Entry)
}
