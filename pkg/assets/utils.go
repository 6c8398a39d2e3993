package assets

import (
	"os"
	"path/filepath"
)

func FileExists(path string) bool {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return true
	}
	return false
}

// WriteBytes replaces the file at path. Readers never observe a partial
// write.
func WriteBytes(data []byte, path string) error {
	out, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(out.Name())

	_, err = out.Write(data)
	if err != nil {
		out.Close()
		return err
	}

	err = out.Close()
	if err != nil {
		return err
	}

	return os.Rename(out.Name(), path)
}
