package flash

import "encoding/binary"

// Intel flash commands (28F320C3 and compatible)
const (
	intelCmdReadArray    = 0xFF
	intelCmdReadID       = 0x90
	intelCmdCFIQuery     = 0x98
	intelCmdReadStatus   = 0x70
	intelCmdClearStatus  = 0x50
	intelCmdProgram      = 0x40
	intelCmdErase        = 0x20
	intelCmdEraseConfirm = 0xD0
	intelCmdSuspend      = 0xB0
	intelCmdResume       = 0xD0
	intelCmdLockMode     = 0x60 // followed by lock, unlock or lock-down
	intelCmdLock         = 0x01
	intelCmdUnlock       = 0xD0
	intelCmdLockDown     = 0x2F
)

// intelDriver speaks the Intel command set through the register window.
type intelDriver struct {
	regs RegisterIO
}

func (d *intelDriver) prepareStatus() error {
	if err := d.regs.Write16(0, intelCmdClearStatus); err != nil {
		return err
	}
	return d.regs.Write16(0, intelCmdReadStatus)
}

// waitReady polls the status register until the write state machine reports
// ready. A chip that never sets the ready bit blocks here: over this
// transport there is no meaningful host-side timeout shorter than the
// chip's own error reporting.
func (d *intelDriver) waitReady() (Status, error) {
	for {
		v, err := d.regs.Read16(0)
		if err != nil {
			return 0, err
		}
		if s := Status(v); s&StatusReady != 0 {
			return s, nil
		}
	}
}

func (d *intelDriver) EraseBlock(addr uint32) error {
	if err := d.prepareStatus(); err != nil {
		return err
	}
	if err := d.regs.Write16(addr, intelCmdErase); err != nil {
		return err
	}
	if err := d.regs.Write16(addr, intelCmdEraseConfirm); err != nil {
		return err
	}
	status, err := d.waitReady()
	if err != nil {
		return err
	}
	if err := d.regs.Write16(0, intelCmdReadArray); err != nil {
		return err
	}
	if status.Failed() {
		return &StatusError{Status: status}
	}
	return nil
}

func (d *intelDriver) ProgramBlock(addr uint32, data []byte, slow bool) error {
	if err := d.prepareStatus(); err != nil {
		return err
	}
	for i := 0; i+1 < len(data); i += 2 {
		w := binary.LittleEndian.Uint16(data[i:])
		if w == 0xFFFF {
			// erased cells already read all-ones
			continue
		}
		target := addr + uint32(i)
		if i == 0 {
			// the word at the block start cannot use the merged write
			if err := d.regs.Write16(addr, intelCmdProgram); err != nil {
				return err
			}
			if err := d.regs.Write16(target, w); err != nil {
				return err
			}
		} else {
			if err := d.regs.ProgramWord(target, intelCmdProgram, w); err != nil {
				return err
			}
		}
		if slow {
			status, err := d.waitReady()
			if err != nil {
				return err
			}
			if status.Failed() {
				d.regs.Write16(0, intelCmdReadArray)
				return &StatusError{Status: status}
			}
		}
	}
	return d.regs.Write16(0, intelCmdReadArray)
}

func (d *intelDriver) SetBlockLock(addr uint32, lock bool) error {
	if err := d.regs.Write16(addr, intelCmdLockMode); err != nil {
		return err
	}
	cmd := uint16(intelCmdUnlock)
	if lock {
		cmd = intelCmdLock
	}
	return d.regs.Write16(addr, cmd)
}
