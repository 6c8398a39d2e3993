package assets

import (
	"context"
	"fmt"
	"os"

	"github.com/cfoust/forge/pkg/packfile"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

const INDEX_KEY = "index-%016x"

// IndexKey identifies one version of a packfile on disk. Touching or
// replacing the file produces a new key.
func IndexKey(path string, info os.FileInfo) string {
	digest := xxhash.New()
	fmt.Fprintf(digest, "%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	return fmt.Sprintf(INDEX_KEY, digest.Sum64())
}

// IndexCache stores packfile directories in a Store.
type IndexCache struct {
	store Store
}

func NewIndexCache(store Store) *IndexCache {
	return &IndexCache{store: store}
}

// Load returns the cached directory for the packfile at path, or Missing.
// A value that cannot be decoded counts as a miss and is reported as such.
func (c *IndexCache) Load(ctx context.Context, path string, info os.FileInfo) (*packfile.Directory, error) {
	data, err := c.store.Get(ctx, IndexKey(path, info))
	if err != nil {
		return nil, err
	}

	var directory packfile.Directory
	err = cbor.Unmarshal(data, &directory)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt index for %s: %v", Missing, path, err)
	}

	return &directory, nil
}

func (c *IndexCache) Save(ctx context.Context, path string, info os.FileInfo, directory *packfile.Directory) error {
	data, err := cbor.Marshal(directory)
	if err != nil {
		return err
	}

	return c.store.Set(ctx, IndexKey(path, info), data)
}
