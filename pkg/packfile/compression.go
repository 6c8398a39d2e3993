package packfile

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

var inflaters sync.Pool

// inflate decompresses a zlib stream that must expand to exactly size bytes.
func inflate(compressed []byte, size uint32) ([]byte, error) {
	source := bytes.NewReader(compressed)

	var reader io.ReadCloser
	if pooled, ok := inflaters.Get().(io.ReadCloser); ok {
		err := pooled.(zlib.Resetter).Reset(source, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib header: %v", ErrFormat, err)
		}
		reader = pooled
	} else {
		fresh, err := zlib.NewReader(source)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib header: %v", ErrFormat, err)
		}
		reader = fresh
	}
	defer inflaters.Put(reader)

	out := make([]byte, size)
	_, err := io.ReadFull(reader, out)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: inflated data shorter than declared %d bytes: %v",
			ErrFormat,
			size,
			err,
		)
	}

	// Anything left over means the declared size was wrong. Reading to the
	// end also verifies the stream checksum.
	var extra [1]byte
	n, err := reader.Read(extra[:])
	if n != 0 {
		return nil, fmt.Errorf("%w: inflated data longer than declared %d bytes", ErrFormat, size)
	}
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return out, nil
}
