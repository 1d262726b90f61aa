// Package csr implements the TWD register unit's control/status register
// and address register: a table-shaped 32-bit register with read-only,
// read/write, and write-1-to-clear fields, plus the width-selectable
// ADDR register.
package csr

import "github.com/sirupsen/logrus"

// File is the CSR register. It holds the sticky error latches, the
// AINCR control bit, and the reset-handshake bits; BUSY and VERSION are
// computed rather than stored.
type File struct {
	logger *logrus.Entry

	asizeMinus1 uint8 // ASIZE field: ADDR width in bytes minus one
	idcode      uint32

	eparity   bool
	ebusfault bool
	ebusy     bool
	aincr     bool

	ndtmReset    bool
	ndtmResetAck bool

	mdropAddr uint8
}

// NewFile creates a CSR file for a device with the given ADDR width (in
// bytes, 1-8) and fixed IDCODE.
func NewFile(logger *logrus.Entry, addrWidthBytes int, idcode uint32) *File {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	f := &File{logger: logger.WithField("component", "csr"), idcode: idcode}
	f.asizeMinus1 = uint8(addrWidthBytes - 1)
	return f
}

// Reset clears all state to power-on defaults (DRST_N assertion).
// MDROPADDR is intentionally NOT part of this reset: it persists across
// disconnect, and DRST_N is a stronger reset that callers may choose to
// apply separately via SetMDropAddr.
func (f *File) Reset() {
	f.eparity = false
	f.ebusfault = false
	f.ebusy = false
	f.aincr = false
	f.ndtmReset = false
	f.ndtmResetAck = false
}

// AddrWidthBytes reports (ASIZE+1), the current ADDR/DATA/BUFF width.
func (f *File) AddrWidthBytes() int { return int(f.asizeMinus1) + 1 }

// IDCode returns the fixed device identifier for R.IDCODE.
func (f *File) IDCode() uint32 { return f.idcode }

// Aincr reports the live AINCR control bit.
func (f *File) Aincr() bool { return f.aincr }

// MDropAddr reports the live multidrop address field (0-15).
func (f *File) MDropAddr() uint8 { return f.mdropAddr }

// SetMDropAddr forces the MDROPADDR field, e.g. from device configuration
// at startup.
func (f *File) SetMDropAddr(addr uint8) { f.mdropAddr = addr & 0xF }

// SetEBusFault latches the sticky bus-fault bit. Called by the bus
// master when a transaction completes with PSLVERR asserted.
func (f *File) SetEBusFault() {
	f.ebusfault = true
	f.logger.Warn("EBUSFAULT latched")
}

// SetEBusy latches the sticky busy-conflict bit. Called when a command
// requiring a fresh bus transaction arrives while one is outstanding.
func (f *File) SetEBusy() {
	f.ebusy = true
	f.logger.Warn("EBUSY latched")
}

// SetEParity latches the sticky parity-error bit. Called by the framing
// decoder on any inbound parity failure.
func (f *File) SetEParity() {
	f.eparity = true
	f.logger.Warn("EPARITY latched")
}

// SetNDTMResetAck drives the read-only acknowledgement bit; wired from
// whatever external reset-handshake logic the host integration supplies.
func (f *File) SetNDTMResetAck(v bool) { f.ndtmResetAck = v }

// NDTMReset reports the live host-requested downstream-reset bit.
func (f *File) NDTMReset() bool { return f.ndtmReset }

// Read assembles the live 32-bit CSR value. busy is the caller-supplied
// "Pending bus op != NONE" signal (the bus master's Busy, passed in
// rather than stored in File).
func (f *File) Read(busy bool) uint32 {
	var v uint32
	v |= versionField << 28
	v |= uint32(f.asizeMinus1) << 24
	if f.eparity {
		v |= 1 << bitEParity
	}
	if f.ebusfault {
		v |= 1 << bitEBusFault
	}
	if f.ebusy {
		v |= 1 << bitEBusy
	}
	if f.aincr {
		v |= 1 << bitAincr
	}
	if busy {
		v |= 1 << bitBusy
	}
	if f.ndtmResetAck {
		v |= 1 << bitNDTMResetAck
	}
	if f.ndtmReset {
		v |= 1 << bitNDTMReset
	}
	v |= uint32(f.mdropAddr) & 0xF
	return v
}

// Write applies a host W.CSR payload: RW fields are replaced outright,
// W1C fields clear when the host writes a 1, RO fields are ignored.
func (f *File) Write(w uint32) {
	f.aincr = w&(1<<bitAincr) != 0
	f.ndtmReset = w&(1<<bitNDTMReset) != 0
	f.mdropAddr = uint8(w & 0xF)

	if w&(1<<bitEParity) != 0 {
		f.eparity = false
	}
	if w&(1<<bitEBusFault) != 0 {
		f.ebusfault = false
	}
	if w&(1<<bitEBusy) != 0 {
		f.ebusy = false
	}
	f.logger.WithField("csr", w).Debug("W.CSR applied")
}
