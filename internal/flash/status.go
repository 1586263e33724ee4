package flash

import (
	"fmt"
	"strings"
)

// Status is a snapshot of the flash status register.
type Status uint16

// Status register bits (Intel C3 family layout)
const (
	StatusReady            Status = 1 << 7 // write state machine ready
	StatusEraseSuspended   Status = 1 << 6
	StatusEraseError       Status = 1 << 5
	StatusProgramError     Status = 1 << 4
	StatusVPPError         Status = 1 << 3 // VPP low during operation
	StatusProgramSuspended Status = 1 << 2
	StatusLocked           Status = 1 << 1 // operation hit a locked block
)

const statusErrorMask = StatusEraseError | StatusProgramError | StatusVPPError | StatusLocked

// Failed reports whether any erase/program/voltage/lock error bit is set.
func (s Status) Failed() bool {
	return s&statusErrorMask != 0
}

// String lists the names of all set status bits.
func (s Status) String() string {
	var names []string
	for _, f := range []struct {
		bit  Status
		name string
	}{
		{StatusReady, "READY"},
		{StatusEraseSuspended, "ERASE_SUSPEND"},
		{StatusEraseError, "ERASE_ERROR"},
		{StatusProgramError, "PROGRAM_ERROR"},
		{StatusVPPError, "VPP_ERROR"},
		{StatusProgramSuspended, "PROGRAM_SUSPEND"},
		{StatusLocked, "LOCKED"},
	} {
		if s&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

// StatusError is a chip-reported failure decoded from the status register.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flash error, status 0x%04x: %s", uint16(e.Status), e.Status)
}

// PollError is an AMD-family data-poll timeout: the DQ5 timeout bit was
// raised before the data poll settled.
type PollError struct {
	Address uint32
	Value   uint16
}

func (e *PollError) Error() string {
	return fmt.Sprintf("flash poll timeout at 0x%06x: read back 0x%04x", e.Address, e.Value)
}

// IdentificationError means the manufacturer/device ID pair read from the
// chip is not in the supported catalog.
type IdentificationError struct {
	Manufacturer uint16
	Device       uint16
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("unsupported flash type: mfg ID 0x%04x, device ID 0x%04x",
		e.Manufacturer, e.Device)
}
