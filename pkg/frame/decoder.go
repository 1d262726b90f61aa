// Package frame implements the TWD framing / command decoder (FD):
// command-byte recognition with parity, payload framing with a parity
// trailer, and turnaround (Hi-Z) bit sequencing.
package frame

import (
	"github.com/sirupsen/logrus"

	"github.com/twdtm/dtm/internal/bitio"
)

// Registers is the interface the decoder dispatches to once a command
// byte has been fully and correctly framed. It stands in for the
// register unit / pipeline controller / bus master group.
type Registers interface {
	// AddrWidthBytes reports the current ADDR width, (ASIZE+1) bytes.
	AddrWidthBytes() int
	// Read produces the payload bytes for a DTM->host command.
	Read(cmd Command) []byte
	// Write consumes the payload bytes of a host->DTM command.
	Write(cmd Command, payload []byte)
	// OnParityFail is invoked the instant a parity check fails.
	OnParityFail()
	// OnDisconnect is invoked on an explicit DISCONNECT command.
	OnDisconnect()
}

type phase uint8

const (
	phaseStart phase = iota
	phaseCmdBits
	phaseCmdParity
	phaseCmdTurn
	phasePayload
	phasePayloadParity
	phasePayloadZero
	phasePayloadTurn
)

// Decoder is the per-connection framing state machine. It is reset
// whenever the link disconnects or reconnects.
type Decoder struct {
	logger *logrus.Entry
	regs   Registers

	ph       phase
	bitCount int

	startBit bool
	cmdBits  [4]bool
	cmd      Command
	dir      Direction
	reserved bool
	width    int // payload width in bytes for the active command

	payload   []byte // accumulated/staged payload bytes
	payloadAt int    // next payload bit index within payload

	parityAcc     bool // running accumulator for payload parity
	wireParityAcc bool // mirrors parityAcc while we stream bits out (DirDTMToHost)

	// Mealy-style registered outputs: the value returned by the *next*
	// Step call for (do, doe), computed by the current call.
	nextDO  bool
	nextDOE bool
}

// NewDecoder creates a Decoder dispatching to regs.
func NewDecoder(logger *logrus.Entry, regs Registers) *Decoder {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Decoder{logger: logger.WithField("component", "frame"), regs: regs}
	d.Reset()
	return d
}

// Reset returns the decoder to the start of a command byte, releasing
// any output drive. Called on connect, disconnect, and parity failure.
func (d *Decoder) Reset() {
	d.ph = phaseStart
	d.bitCount = 0
	d.nextDO = false
	d.nextDOE = false
}

// Step processes one bit sampled at a DCK rising edge and returns the
// (do, doe) pair the link should drive until the following edge.
func (d *Decoder) Step(di bool) (do, doe bool) {
	do, doe = d.nextDO, d.nextDOE
	d.advance(di)
	return do, doe
}

func (d *Decoder) advance(di bool) {
	switch d.ph {
	case phaseStart:
		d.startBit = di
		d.ph = phaseCmdBits
		d.bitCount = 0
		d.nextDOE = false

	case phaseCmdBits:
		d.cmdBits[d.bitCount] = di
		d.bitCount++
		d.nextDOE = false
		if d.bitCount == 4 {
			d.ph = phaseCmdParity
		}

	case phaseCmdParity:
		code := uint8(0)
		for i := 0; i < 4; i++ {
			code <<= 1
			if d.cmdBits[i] {
				code |= 1
			}
		}
		expected := xor5(d.startBit, d.cmdBits[0], d.cmdBits[1], d.cmdBits[2], d.cmdBits[3])
		d.nextDOE = false
		if di != expected {
			d.regs.OnParityFail()
			d.Reset()
			// Discard the rest of the byte (both turnaround bits) before
			// looking for the next start bit.
			d.reserved = true
			d.ph = phaseCmdTurn
			return
		}
		cmd, _, dir, ok := Lookup(code)
		d.reserved = !ok
		d.cmd = cmd
		d.dir = dir
		d.bitCount = 0
		d.ph = phaseCmdTurn

	case phaseCmdTurn:
		d.bitCount++
		d.nextDOE = false
		if d.bitCount < 2 {
			return
		}
		if d.reserved || d.dir == DirNone {
			if !d.reserved && d.cmd == CmdDisconnect {
				d.regs.OnDisconnect()
			}
			d.Reset()
			return
		}
		d.beginPayload()

	case phasePayload:
		d.stepPayloadBit(di)

	case phasePayloadParity:
		if d.dir == DirHostToDTM {
			if di != d.parityAcc {
				d.regs.OnParityFail()
				d.Reset()
				return
			}
			d.regs.Write(d.cmd, d.payload)
		}
		d.ph = phasePayloadZero
		d.nextDOE = d.dir == DirDTMToHost
		d.nextDO = false

	case phasePayloadZero:
		d.ph = phasePayloadTurn
		d.bitCount = 0
		d.nextDOE = false

	case phasePayloadTurn:
		d.nextDOE = false
		d.bitCount++
		if d.bitCount == 2 {
			d.Reset()
		}
	}
}

func (d *Decoder) beginPayload() {
	d.width = d.regs.AddrWidthBytes()
	if d.cmd != CmdReadAddr && d.cmd != CmdWriteAddr && d.cmd != CmdWriteAddrRead {
		d.width = 4
	}
	d.payload = make([]byte, d.width)
	d.payloadAt = 0
	d.parityAcc = true
	d.wireParityAcc = true
	if d.dir == DirDTMToHost {
		d.payload = d.regs.Read(d.cmd)
	}
	d.ph = phasePayload
	d.nextDOE = d.dir == DirDTMToHost
	if d.nextDOE {
		d.nextDO = bitio.GetBit(d.payload, 0)
	} else {
		d.nextDO = false
	}
}

func (d *Decoder) stepPayloadBit(di bool) {
	totalBits := d.width * 8
	if d.dir == DirHostToDTM {
		bitio.SetBit(d.payload, d.payloadAt, di)
		d.parityAcc = d.parityAcc != di
	} else {
		d.wireParityAcc = d.wireParityAcc != bitio.GetBit(d.payload, d.payloadAt)
	}
	d.payloadAt++
	d.nextDOE = d.dir == DirDTMToHost
	if d.payloadAt < totalBits {
		if d.nextDOE {
			d.nextDO = bitio.GetBit(d.payload, d.payloadAt)
		}
		return
	}
	d.ph = phasePayloadParity
	d.nextDOE = d.dir == DirDTMToHost
	d.nextDO = d.wireParityAcc
}

func xor5(a, b, c, e, f bool) bool {
	return a != b != c != e != f
}
