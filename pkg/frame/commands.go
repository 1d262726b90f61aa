package frame

// Command is a 4-bit TWD command code.
type Command uint8

const (
	CmdDisconnect    Command = 0x0
	CmdReadIDCode    Command = 0x1
	CmdReadCSR       Command = 0x2
	CmdWriteCSR      Command = 0x3
	CmdReadAddr      Command = 0x4
	CmdWriteAddr     Command = 0x5
	CmdWriteAddrRead Command = 0x6
	CmdReadData      Command = 0x7
	CmdReadBuff      Command = 0x8
	CmdWriteData     Command = 0x9
)

// Direction describes which side drives a command's payload.
type Direction uint8

const (
	DirNone Direction = iota
	DirHostToDTM
	DirDTMToHost
)

// info describes the framing shape of one command.
type info struct {
	name string
	dir  Direction
	// width is the payload width in bytes, or 0 to mean "use the
	// device's current ADDR width" (only true for the three ADDR commands).
	width int
}

var table = map[Command]info{
	CmdDisconnect:    {"DISCONNECT", DirNone, 0},
	CmdReadIDCode:    {"R.IDCODE", DirDTMToHost, 4},
	CmdReadCSR:       {"R.CSR", DirDTMToHost, 4},
	CmdWriteCSR:      {"W.CSR", DirHostToDTM, 4},
	CmdReadAddr:      {"R.ADDR", DirDTMToHost, 0},
	CmdWriteAddr:     {"W.ADDR", DirHostToDTM, 0},
	CmdWriteAddrRead: {"W.ADDR.R", DirHostToDTM, 0},
	CmdReadData:      {"R.DATA", DirDTMToHost, 4},
	CmdReadBuff:      {"R.BUFF", DirDTMToHost, 4},
	CmdWriteData:     {"W.DATA", DirHostToDTM, 4},
}

// Lookup returns the command for a 4-bit code. Reserved codes (not in
// the table) return ok=false; the decoder treats them as no-ops.
func Lookup(code uint8) (cmd Command, name string, dir Direction, ok bool) {
	i, found := table[Command(code)]
	if !found {
		return 0, "", DirNone, false
	}
	return Command(code), i.name, i.dir, true
}

func (c Command) String() string {
	if i, ok := table[c]; ok {
		return i.name
	}
	return "RESERVED"
}
