package image

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcinbor85/gohex"
)

func TestLoad_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.bin")
	want := make([]byte, 1024)
	for i := range want {
		want[i] = byte(i)
	}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path, 1024)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Load() returned different data than written")
	}
}

func TestLoad_BinaryTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path, 1024)
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("Load() error = %v, want FileError", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"), 16)
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("Load() error = %v, want FileError", err)
	}
}

func TestLoad_IntelHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	mem := gohex.NewMemory()
	if err := mem.AddBinary(0x10, payload); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.DumpIntelHex(f, 16); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := Load(path, 64)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("Load() length = %d, want flash size 64", len(got))
	}
	if !bytes.Equal(got[0x10:0x14], payload) {
		t.Errorf("Load() data at 0x10 = %v, want %v", got[0x10:0x14], payload)
	}
	// gaps must stay erased
	for _, i := range []int{0, 0x0F, 0x14, 63} {
		if got[i] != 0xFF {
			t.Errorf("Load()[0x%02X] = 0x%02X, want 0xFF fill", i, got[i])
		}
	}
}

func TestLoad_HexSegmentOutsideFlash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")

	mem := gohex.NewMemory()
	if err := mem.AddBinary(0x100, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.DumpIntelHex(f, 16); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = Load(path, 64)
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("Load() error = %v, want FileError", err)
	}
}

func TestSave_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	data := []byte{9, 8, 7, 6}

	if err := Save(path, data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Save() wrote different data")
	}
}

func TestSave_HexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.hex")
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i ^ 0xA5)
	}

	if err := Save(path, data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path, len(data))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("HEX round trip produced different data")
	}
}
