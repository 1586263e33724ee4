// Package image loads and saves firmware images, either as raw binaries or
// in the Intel HEX format.
package image

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// FileError is a failed image file operation.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func isHex(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		return true
	}
	return false
}

// Load reads a firmware image for a flash of the given size. Intel HEX
// files (by extension) are flattened onto a 0xFF-filled buffer, so gaps
// stay erased; raw binaries must be at least size bytes long.
func Load(path string, size int) ([]byte, error) {
	if isHex(path) {
		return loadHex(path, size)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if len(data) < size {
		return nil, &FileError{Path: path, Err: fmt.Errorf("image must be at least %d bytes, got %d", size, len(data))}
	}
	return data, nil
}

func loadHex(path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xFF
	}
	for _, seg := range mem.GetDataSegments() {
		end := int(seg.Address) + len(seg.Data)
		if end > size {
			return nil, &FileError{Path: path, Err: fmt.Errorf(
				"segment 0x%06x-0x%06x lies outside the %d-byte flash", seg.Address, end, size)}
		}
		copy(buf[seg.Address:], seg.Data)
	}
	return buf, nil
}

// Save writes a firmware image, as Intel HEX if the extension asks for it,
// raw otherwise.
func Save(path string, data []byte) error {
	if isHex(path) {
		return saveHex(path, data)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}

func saveHex(path string, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(0, data); err != nil {
		return &FileError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	defer f.Close()

	if err := mem.DumpIntelHex(f, 16); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}
