package flash

import "encoding/binary"

// AMD/JEDEC flash commands
const (
	amdCmdReset        = 0xF0
	amdCmdAutoselect   = 0x90
	amdCmdProgram      = 0xA0
	amdCmdUnlockBypass = 0x20
	amdCmdErase        = 0x80
	amdCmdEraseSector  = 0x30
	amdCmdBypassReset  = 0x90 // followed by 0x00
)

// AMD data-poll bits, observed by reading back the operation address
const (
	amdDQ7 = 0x80 // data poll: mirrors the true data bit once done
	amdDQ5 = 0x20 // exceeded timing limits
)

// amdDriver speaks the AMD/JEDEC command set through the register window.
type amdDriver struct {
	regs RegisterIO
}

// poll reads back addr until bit 7 matches the expected data, which is how
// AMD chips signal completion. DQ5 raised before that is a chip-side
// timeout: emit a reset and fail immediately.
func (d *amdDriver) poll(addr uint32, want uint16) error {
	for {
		v, err := d.regs.Read16(addr)
		if err != nil {
			return err
		}
		if v&amdDQ7 == want&amdDQ7 {
			return nil
		}
		if v&amdDQ5 != 0 {
			if err := d.regs.Write16(0, amdCmdReset); err != nil {
				return err
			}
			return &PollError{Address: addr, Value: v}
		}
	}
}

// pollData waits for a programmed word to read back exactly as written.
// This conflates "data settled" with "data correct" and cannot see every
// error the chip could report, but it is what the boot flash protocol has
// always done for this path.
func (d *amdDriver) pollData(addr uint32, want uint16) error {
	for {
		v, err := d.regs.Read16(addr)
		if err != nil {
			return err
		}
		if v == want {
			return nil
		}
		if v&amdDQ5 != 0 {
			if err := d.regs.Write16(0, amdCmdReset); err != nil {
				return err
			}
			return &PollError{Address: addr, Value: v}
		}
	}
}

func (d *amdDriver) EraseBlock(addr uint32) error {
	if err := d.regs.UnlockCommand(amdCmdErase); err != nil {
		return err
	}
	// second unlock cycle arms the per-sector erase command
	if err := d.regs.Write16(unlockAddr1, 0xAA); err != nil {
		return err
	}
	if err := d.regs.Write16(unlockAddr2, 0x55); err != nil {
		return err
	}
	if err := d.regs.Write16(addr, amdCmdEraseSector); err != nil {
		return err
	}
	// an erased cell reads 0xFFFF, so DQ7 settles to 1
	return d.poll(addr, 0xFFFF)
}

func (d *amdDriver) ProgramBlock(addr uint32, data []byte, slow bool) error {
	// unlock bypass mode: each word needs only the program command and the
	// data, no unlock cycles
	if err := d.regs.UnlockCommand(amdCmdUnlockBypass); err != nil {
		return err
	}
	for i := 0; i+1 < len(data); i += 2 {
		w := binary.LittleEndian.Uint16(data[i:])
		if w == 0xFFFF {
			continue
		}
		target := addr + uint32(i)
		if i == 0 {
			if err := d.regs.Write16(addr, amdCmdProgram); err != nil {
				return err
			}
			if err := d.regs.Write16(target, w); err != nil {
				return err
			}
		} else {
			if err := d.regs.ProgramWord(target, amdCmdProgram, w); err != nil {
				return err
			}
		}
		if slow {
			if err := d.pollData(target, w); err != nil {
				return err
			}
		}
	}
	// leave unlock bypass mode
	if err := d.regs.Write16(0, amdCmdBypassReset); err != nil {
		return err
	}
	return d.regs.Write16(0, 0x00)
}

// SetBlockLock is a no-op: the AMD parts in the catalog have no software
// block locking.
func (d *amdDriver) SetBlockLock(addr uint32, lock bool) error {
	return nil
}
