package protocol

// Command is the packet command kind understood by the boot loader firmware.
type Command byte

// Boot loader firmware commands
const (
	CmdError           Command = 0
	CmdGetVersion      Command = 1
	CmdReadMem         Command = 2
	CmdWriteMem        Command = 3
	CmdReadModifyWrite Command = 4
	CmdChecksumMem     Command = 5
	CmdGotoMem         Command = 6
)

// CommandName returns a human-readable name for a command.
func CommandName(cmd Command) string {
	switch cmd {
	case CmdError:
		return "error"
	case CmdGetVersion:
		return "get version"
	case CmdReadMem:
		return "read memory"
	case CmdWriteMem:
		return "write memory"
	case CmdReadModifyWrite:
		return "read-modify-write memory"
	case CmdChecksumMem:
		return "checksum memory"
	case CmdGotoMem:
		return "goto memory"
	default:
		return "unknown command"
	}
}

// AccessWidth selects the bus access size used for a memory transfer.
type AccessWidth byte

// Memory access widths
const (
	AccessByte  AccessWidth = 0
	AccessWord  AccessWidth = 1
	AccessDword AccessWidth = 2
)

// String returns a human-readable name for an access width.
func (a AccessWidth) String() string {
	switch a {
	case AccessByte:
		return "byte"
	case AccessWord:
		return "word"
	case AccessDword:
		return "dword"
	default:
		return "unknown"
	}
}
