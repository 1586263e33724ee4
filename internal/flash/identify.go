package flash

// Driver erases, programs and (where supported) locks flash blocks using
// one chip family's command set.
type Driver interface {
	// EraseBlock erases the block starting at the flash-relative address.
	EraseBlock(addr uint32) error

	// ProgramBlock programs a full block. Words equal to 0xFFFF are
	// skipped. With slow set, the chip status is checked after each word
	// instead of relying on USB latency to outlast the program time.
	ProgramBlock(addr uint32, data []byte, slow bool) error

	// SetBlockLock locks or unlocks the block. A no-op for chips without
	// software block locking.
	SetBlockLock(addr uint32, lock bool) error
}

// NewDriver binds the command-set driver matching the chip to a register
// window.
func NewDriver(chip *Chip, regs RegisterIO) Driver {
	switch chip.CommandSet {
	case AMDCommandSet:
		return &amdDriver{regs: regs}
	default:
		return &intelDriver{regs: regs}
	}
}

// exitIDMode issues both families' return-to-read commands so the chip is
// back in array-read mode no matter which family it belongs to.
func exitIDMode(regs RegisterIO) error {
	if err := regs.Write16(0, intelCmdReadArray); err != nil {
		return err
	}
	return regs.Write16(0, amdCmdReset)
}

func readIDs(regs RegisterIO) (mfg, dev uint16, err error) {
	if mfg, err = regs.Read16(0); err != nil {
		return
	}
	if dev, err = regs.Read16(2); err != nil {
		return
	}
	err = exitIDMode(regs)
	return
}

// Identify reads the chip's manufacturer and device IDs and matches them
// against the catalog. Intel chips answer a plain read-identifier command;
// AMD chips need the unlock-sequence autoselect, tried second. An ID pair
// not in the catalog is fatal.
func Identify(regs RegisterIO) (*Chip, Driver, error) {
	// get the chip into a known state first
	if err := exitIDMode(regs); err != nil {
		return nil, nil, err
	}

	if err := regs.Write16(0, intelCmdReadID); err != nil {
		return nil, nil, err
	}
	mfg, dev, err := readIDs(regs)
	if err != nil {
		return nil, nil, err
	}
	if chip := Lookup(mfg, dev); chip != nil {
		return chip, NewDriver(chip, regs), nil
	}

	if err := regs.UnlockCommand(amdCmdAutoselect); err != nil {
		return nil, nil, err
	}
	mfg, dev, err = readIDs(regs)
	if err != nil {
		return nil, nil, err
	}
	if chip := Lookup(mfg, dev); chip != nil {
		return chip, NewDriver(chip, regs), nil
	}

	return nil, nil, &IdentificationError{Manufacturer: mfg, Device: dev}
}
