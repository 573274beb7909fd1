package common

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Min returns the smaller of a or b
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}

	return b
}

// Max returns the larger of a or b
func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}

	return b
}

// EncodeUint64ToBytes encodes provided uint64 to big endian byte slice
func EncodeUint64ToBytes(value uint64) []byte {
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, value)

	return result
}

// EncodeBytesToUint64 big endian byte slice to uint64
func EncodeBytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// SetupDataDir sets up the data directory and the corresponding sub-folders
func SetupDataDir(dataDir string, paths []string, perms os.FileMode) error {
	if err := createDir(dataDir, perms); err != nil {
		return fmt.Errorf("failed to create data dir: (%s): %w", dataDir, err)
	}

	for _, path := range paths {
		path := filepath.Join(dataDir, path)
		if err := createDir(path, perms); err != nil {
			return fmt.Errorf("failed to create path: (%s): %w", path, err)
		}
	}

	return nil
}

// DirectoryExists checks if the directory at the specified path exists
func DirectoryExists(directoryPath string) bool {
	if directoryPath == "" {
		return false
	}

	info, err := os.Stat(directoryPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	return err == nil && info.IsDir()
}

// createDir creates a file system directory if it doesn't exist
func createDir(path string, perms os.FileMode) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, perms)
	}

	return err
}
