package csr

import "github.com/twdtm/dtm/internal/bitio"

// Addr is the width-selectable address register. Width is driven
// externally by the CSR file's ASIZE field since it can change only via
// device configuration, not at runtime.
type Addr struct {
	value uint64
	mask  uint64
}

// NewAddr creates an Addr register for the given width in bytes (1-8).
func NewAddr(widthBytes int) *Addr {
	a := &Addr{}
	a.SetWidth(widthBytes)
	return a
}

// SetWidth changes the active width, truncating any out-of-range bits
// of the current value.
func (a *Addr) SetWidth(widthBytes int) {
	if widthBytes >= 8 {
		a.mask = ^uint64(0)
	} else {
		a.mask = (uint64(1) << uint(widthBytes*8)) - 1
	}
	a.value &= a.mask
}

// Reset zeroes the register (DRST_N assertion).
func (a *Addr) Reset() { a.value = 0 }

// Get returns the current address value.
func (a *Addr) Get() uint64 { return a.value }

// Set stores v, masked to the current width.
func (a *Addr) Set(v uint64) { a.value = v & a.mask }

// Advance adds delta bytes to the address, wrapping at the current
// width: increments carry through every high bit without truncation
// beyond the configured addr width.
func (a *Addr) Advance(delta uint64) {
	a.value = (a.value + delta) & a.mask
}

// Bytes encodes the current value little-endian into an n-byte slice.
func (a *Addr) Bytes(n int) []byte {
	buf := make([]byte, n)
	bitio.PutUint64(buf, a.value)
	return buf
}

// SetBytes decodes a little-endian payload into the register, masked to
// the current width.
func (a *Addr) SetBytes(buf []byte) {
	a.Set(bitio.Uint64(buf))
}
