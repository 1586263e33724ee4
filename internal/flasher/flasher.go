// Package flasher orchestrates whole-device flash operations: identify,
// then per block unlock, erase, program and lock, or a full-device read.
package flasher

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ondrej-zary/cx861xx-flash/internal/flash"
	"github.com/ondrej-zary/cx861xx-flash/internal/memory"
	"github.com/ondrej-zary/cx861xx-flash/internal/protocol"
)

// ProgressCallback is called to report flash progress.
type ProgressCallback func(current, total int)

// Target carries the device-family constants resolved at open time.
type Target struct {
	// FlashBase is the physical address where flash is mapped.
	FlashBase uint32

	// FlashEnable is the I/O register written with 1 to map the flash,
	// or 0 if the flash is always accessible.
	FlashEnable uint32
}

// readStep is the granularity of full-device reads, and of read progress.
const readStep = 1024

// Flasher drives flash operations on one open boot loader device.
type Flasher struct {
	t        memory.Transport
	mem      *memory.Accessor
	regs     *flash.Registers
	target   Target
	chip     *flash.Chip
	drv      flash.Driver
	progress ProgressCallback
}

// New creates a Flasher for a boot loader reachable through t.
func New(t memory.Transport, target Target) *Flasher {
	mem := memory.New(t)
	return &Flasher{
		t:      t,
		mem:    mem,
		regs:   flash.NewRegisters(mem, target.FlashBase),
		target: target,
	}
}

// SetProgressCallback sets the progress callback function.
func (f *Flasher) SetProgressCallback(cb ProgressCallback) {
	f.progress = cb
}

func (f *Flasher) reportProgress(current, total int) {
	if f.progress != nil {
		f.progress(current, total)
	}
}

// Identify enables flash access on families that need it, resets the chip
// to array-read mode and matches its IDs against the catalog. It must be
// called before any other flash operation; an unsupported chip is fatal.
func (f *Flasher) Identify() (*flash.Chip, error) {
	if f.target.FlashEnable != 0 {
		if err := f.mem.Write(f.target.FlashEnable, []byte{1}, protocol.AccessByte); err != nil {
			return nil, fmt.Errorf("failed to enable flash access: %w", err)
		}
	}
	chip, drv, err := flash.Identify(f.regs)
	if err != nil {
		return nil, err
	}
	f.chip = chip
	f.drv = drv
	return chip, nil
}

// Chip returns the identified chip, or nil before Identify.
func (f *Flasher) Chip() *flash.Chip {
	return f.chip
}

// WriteImage erases and programs the whole chip from img, block by block in
// ascending address order: unlock, erase, program, lock. The first failure
// aborts the run; there is no rollback and no skip-and-continue.
func (f *Flasher) WriteImage(img []byte, slow bool) error {
	if f.chip == nil {
		return errors.New("flash chip not identified")
	}
	if len(img) < int(f.chip.Size) {
		return fmt.Errorf("image is %d bytes, flash needs %d", len(img), f.chip.Size)
	}

	blocks := f.chip.BlockList()
	for i, b := range blocks {
		if err := f.drv.SetBlockLock(b.Addr, false); err != nil {
			return fmt.Errorf("unlocking block 0x%06x: %w", b.Addr, err)
		}
		if err := f.drv.EraseBlock(b.Addr); err != nil {
			return fmt.Errorf("erasing block 0x%06x: %w", b.Addr, err)
		}
		if err := f.drv.ProgramBlock(b.Addr, img[b.Addr:b.Addr+b.Size], slow); err != nil {
			return fmt.Errorf("programming block 0x%06x: %w", b.Addr, err)
		}
		if err := f.drv.SetBlockLock(b.Addr, true); err != nil {
			return fmt.Errorf("locking block 0x%06x: %w", b.Addr, err)
		}
		f.reportProgress(i+1, len(blocks))
	}
	return nil
}

// ReadImage reads the whole identified chip into a fresh buffer.
func (f *Flasher) ReadImage() ([]byte, error) {
	if f.chip == nil {
		return nil, errors.New("flash chip not identified")
	}

	size := int(f.chip.Size)
	buf := make([]byte, 0, size)
	total := (size + readStep - 1) / readStep
	for off := 0; off < size; off += readStep {
		n := readStep
		if size-off < n {
			n = size - off
		}
		chunk, err := f.mem.Read(f.target.FlashBase+uint32(off), n, protocol.AccessWord)
		if err != nil {
			return nil, fmt.Errorf("reading flash at 0x%06x: %w", off, err)
		}
		buf = append(buf, chunk...)
		f.reportProgress(off/readStep+1, total)
	}
	return buf, nil
}

// Verify reads the chip back and compares it against img.
func (f *Flasher) Verify(img []byte) error {
	readback, err := f.ReadImage()
	if err != nil {
		return err
	}
	if !bytes.Equal(readback, img[:len(readback)]) {
		for i := range readback {
			if readback[i] != img[i] {
				return fmt.Errorf("verification failed at 0x%06x: wrote 0x%02x, read 0x%02x",
					i, img[i], readback[i])
			}
		}
	}
	return nil
}

// LoaderVersion asks the boot loader for its version and returns the raw
// payload of the response packet.
func (f *Flasher) LoaderVersion() ([]byte, error) {
	if err := f.t.Send(protocol.VersionRequest()); err != nil {
		return nil, err
	}
	resp, err := f.t.Receive()
	if err != nil {
		return nil, err
	}
	return resp.Data[:resp.ByteCount], nil
}
