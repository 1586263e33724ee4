package flash

import (
	"encoding/binary"

	"github.com/ondrej-zary/cx861xx-flash/internal/memory"
	"github.com/ondrej-zary/cx861xx-flash/internal/protocol"
)

// JEDEC unlock cycle offsets. All flash-relative addresses in this package
// are pre-shifted left by one bit: the target's address bus has no A0 line,
// so the chip's 0x555/0x2AA unlock addresses appear at 0xAAA/0x554.
const (
	unlockAddr1 = 0xAAA
	unlockAddr2 = 0x554
)

// RegisterIO is the 16-bit window into the flash chip used by the protocol
// drivers. Registers is the production implementation; tests substitute
// fakes.
type RegisterIO interface {
	// Read16 reads the 16-bit value at a flash-relative offset.
	Read16(off uint32) (uint16, error)

	// Write16 writes a 16-bit value at a flash-relative offset.
	Write16(off uint32, v uint16) error

	// UnlockCommand arms cmd via the JEDEC three-cycle unlock sequence.
	UnlockCommand(cmd uint16) error

	// ProgramWord writes [cmd, data] as two consecutive words at addr-2,
	// merging the program command and the data into one bus transaction.
	ProgramWord(addr uint32, cmd, data uint16) error
}

// Registers accesses flash-mapped addresses through the memory layer.
type Registers struct {
	mem  *memory.Accessor
	base uint32
}

// NewRegisters creates a register accessor for flash mapped at base.
func NewRegisters(mem *memory.Accessor, base uint32) *Registers {
	return &Registers{mem: mem, base: base}
}

func (r *Registers) Read16(off uint32) (uint16, error) {
	b, err := r.mem.Read(r.base+off, 2, protocol.AccessWord)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Registers) Write16(off uint32, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return r.mem.Write(r.base+off, buf[:], protocol.AccessWord)
}

func (r *Registers) UnlockCommand(cmd uint16) error {
	if err := r.Write16(unlockAddr1, 0xAA); err != nil {
		return err
	}
	if err := r.Write16(unlockAddr2, 0x55); err != nil {
		return err
	}
	return r.Write16(unlockAddr1, cmd)
}

func (r *Registers) ProgramWord(addr uint32, cmd, data uint16) error {
	return r.mem.WriteTwoWords(r.base+addr-2, cmd, data)
}
