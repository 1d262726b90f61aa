package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twdtm/dtm/internal/bitio"
)

// fakeRegs is a minimal Registers implementation for exercising the
// decoder in isolation, a hand-rolled fake rather than a mocking
// library.
type fakeRegs struct {
	addrWidth   int
	readData    map[Command][]byte
	writes      []writeCall
	parityFails int
	disconnects int
}

// reservedCmdBits builds the wire bit sequence for a reserved (not in
// the command table) 4-bit code: start+cmd+parity+2 turnaround bits,
// with no payload phase since reserved codes never dispatch.
func reservedCmdBits(code uint8) []bool {
	start := true
	c3 := code&0x8 != 0
	c2 := code&0x4 != 0
	c1 := code&0x2 != 0
	c0 := code&0x1 != 0
	return []bool{start, c3, c2, c1, c0, xor5(start, c3, c2, c1, c0), false, false}
}

type writeCall struct {
	cmd     Command
	payload []byte
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{addrWidth: 4, readData: map[Command][]byte{}}
}

func (f *fakeRegs) AddrWidthBytes() int { return f.addrWidth }

func (f *fakeRegs) Read(cmd Command) []byte {
	if b, ok := f.readData[cmd]; ok {
		return b
	}
	return make([]byte, 4)
}

func (f *fakeRegs) Write(cmd Command, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.writes = append(f.writes, writeCall{cmd, cp})
}

func (f *fakeRegs) OnParityFail() { f.parityFails++ }
func (f *fakeRegs) OnDisconnect() { f.disconnects++ }

// hostBits turns a command + payload into the exact wire bit sequence a
// conformant host would send, for feeding into Step on the DI side.
func hostBits(code uint8, payload []byte) []bool {
	var bits []bool
	start := true
	bits = append(bits, start)
	c3 := code&0x8 != 0
	c2 := code&0x4 != 0
	c1 := code&0x2 != 0
	c0 := code&0x1 != 0
	bits = append(bits, c3, c2, c1, c0)
	bits = append(bits, xor5(start, c3, c2, c1, c0))
	bits = append(bits, false, false) // turnaround
	acc := true
	for i := 0; i < len(payload)*8; i++ {
		b := bitio.GetBit(payload, i)
		bits = append(bits, b)
		acc = acc != b
	}
	bits = append(bits, acc, false, false, false)
	return bits
}

func runHost(t *testing.T, d *Decoder, bits []bool) []bool {
	t.Helper()
	out := make([]bool, len(bits))
	for i, b := range bits {
		do, _ := d.Step(b)
		out[i] = do
	}
	return out
}

func TestWriteCommandDeliversPayload(t *testing.T) {
	regs := newFakeRegs()
	d := NewDecoder(nil, regs)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	bits := hostBits(uint8(CmdWriteCSR), payload)
	runHost(t, d, bits)

	require.Len(t, regs.writes, 1)
	assert.Equal(t, CmdWriteCSR, regs.writes[0].cmd)
	assert.Equal(t, payload, regs.writes[0].payload)
}

func TestReadCommandStreamsPayload(t *testing.T) {
	regs := newFakeRegs()
	payload := []byte{0x78, 0x56, 0x34, 0x12}
	regs.readData[CmdReadIDCode] = payload
	d := NewDecoder(nil, regs)

	// Drive DI with whatever the host would send for a read (payload
	// bits on the host->DTM side are irrelevant since dir is DTM->host;
	// host drives zeros there and only the parity/turn bits matter).
	bits := hostBits(uint8(CmdReadIDCode), make([]byte, 4))
	out := runHost(t, d, bits)

	// Payload bits begin at index 8 (after start+4 cmd+parity+2 turn),
	// since Step's registered output for slot N is computed while
	// processing slot N-1.
	for i := 0; i < 32; i++ {
		assert.Equal(t, bitio.GetBit(payload, i), out[8+i], "payload bit %d", i)
	}
}

func TestCommandParityFailureResets(t *testing.T) {
	regs := newFakeRegs()
	d := NewDecoder(nil, regs)

	correctParity := xor5(true, false, false, false, true)
	bits := []bool{true, false, false, false, true, !correctParity, false, false}
	runHost(t, d, bits)

	assert.Equal(t, 1, regs.parityFails)
	assert.Equal(t, phaseStart, d.ph)
}

func TestDisconnectCommandNotifies(t *testing.T) {
	regs := newFakeRegs()
	d := NewDecoder(nil, regs)

	bits := []bool{true, false, false, false, false, xor5(true, false, false, false, false), false, false}
	runHost(t, d, bits)

	assert.Equal(t, 1, regs.disconnects)
}

func TestPayloadParityFailureOnWrite(t *testing.T) {
	regs := newFakeRegs()
	d := NewDecoder(nil, regs)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	bits := hostBits(uint8(CmdWriteCSR), payload)
	bits[len(bits)-4] = !bits[len(bits)-4] // flip the payload parity bit
	runHost(t, d, bits)

	assert.Empty(t, regs.writes, "write must not be applied on bad parity")
	assert.Equal(t, 1, regs.parityFails)
}

func TestReservedCommandCodeIsNoOp(t *testing.T) {
	regs := newFakeRegs()
	d := NewDecoder(nil, regs)

	runHost(t, d, reservedCmdBits(0xA))

	assert.Empty(t, regs.writes, "reserved code must never dispatch a write")
	assert.Zero(t, regs.disconnects, "reserved code must not be treated as DISCONNECT")
	assert.Zero(t, regs.parityFails, "a correctly-parited reserved code must not fault")
	assert.Equal(t, phaseStart, d.ph, "decoder must return to idle after a reserved code")
}
