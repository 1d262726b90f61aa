// Package dtm wires the link layer, framing decoder, register unit, and
// pipeline/bus master into the complete two-wire debug transport
// module: the single top-level object an integration drives with
// wire-clock edges and bus ticks.
package dtm

import (
	"log/slog"

	"github.com/sirupsen/logrus"

	"github.com/twdtm/dtm/internal/bitio"
	"github.com/twdtm/dtm/pkg/apb"
	"github.com/twdtm/dtm/pkg/busmaster"
	"github.com/twdtm/dtm/pkg/csr"
	"github.com/twdtm/dtm/pkg/frame"
	"github.com/twdtm/dtm/pkg/pipeline"
	"github.com/twdtm/dtm/pkg/wire"
)

// Config describes the device-configured, power-on-fixed parameters:
// these never change at runtime, only via a fresh Device.
type Config struct {
	IDCode           uint32
	AddrWidthBytes   int // (ASIZE+1), 1-8
	DefaultMDropAddr uint8
}

// Device is the complete DTM: link layer + framing decoder + register
// unit + pipeline controller + bus master, wired together.
type Device struct {
	log *slog.Logger

	link    *wire.Link
	decoder *frame.Decoder
	csr     *csr.File
	addr    *csr.Addr
	pc      *pipeline.Controller
	bus     *busmaster.Master
}

// NewDevice constructs a Device over the given downstream bus slave
// (nil is accepted for register-unit-only testing without a bus).
func NewDevice(log *slog.Logger, cfg Config, slave apb.Slave) *Device {
	if log == nil {
		log = slog.Default()
	}
	engineLog := logrus.NewEntry(logrus.StandardLogger())

	d := &Device{log: log}
	d.csr = csr.NewFile(engineLog, cfg.AddrWidthBytes, cfg.IDCode)
	d.csr.SetMDropAddr(cfg.DefaultMDropAddr)
	d.addr = csr.NewAddr(cfg.AddrWidthBytes)
	d.bus = busmaster.NewMaster(engineLog, slave)
	d.pc = pipeline.NewController(engineLog, d.csr, d.addr, d.bus)
	d.link = wire.NewLink(engineLog, cfg.DefaultMDropAddr)
	d.decoder = frame.NewDecoder(engineLog, d)
	return d
}

// Reset applies DRST_N: clears all registers, the pipeline, and the bus
// master's outstanding-transaction bookkeeping, and drops the link to
// Disconnected.
func (d *Device) Reset() {
	d.csr.Reset()
	d.addr.Reset()
	d.pc.Reset()
	d.bus.Reset()
	d.link.Reset()
	d.decoder.Reset()
	d.log.Debug("device reset (DRST_N)")
}

// Step processes one DCK rising edge: while disconnected, di feeds the
// connect-sequence detector; once connected, di feeds the framing
// decoder. Returns the (do, doe) pair to drive until the next edge.
func (d *Device) Step(di bool) (do, doe bool) {
	if d.link.State() != wire.Connected {
		if d.link.Sample(di) {
			d.decoder.Reset()
		}
		return false, false
	}
	return d.decoder.Step(di)
}

// StepBus advances the downstream bus by one tick, applying any
// transaction that completes this tick to the pipeline/CSR state.
func (d *Device) StepBus() {
	if result, done := d.bus.Tick(); done {
		d.pc.OnBusResult(result)
	}
}

// SetSlave rebinds the downstream bus backend.
func (d *Device) SetSlave(slave apb.Slave) { d.bus.SetSlave(slave) }

// State exposes the link connection state, mainly for diagnostics and
// the HTTP gateway.
func (d *Device) State() wire.State { return d.link.State() }

// CSR returns the live 32-bit CSR value, for diagnostics/gateway use
// outside the wire protocol itself.
func (d *Device) CSR() uint32 { return d.csr.Read(d.bus.Busy()) }

// Addr returns the live ADDR register value.
func (d *Device) Addr() uint64 { return d.addr.Get() }

// --- frame.Registers ---

// AddrWidthBytes implements frame.Registers.
func (d *Device) AddrWidthBytes() int { return d.csr.AddrWidthBytes() }

// Read implements frame.Registers.
func (d *Device) Read(cmd frame.Command) []byte {
	switch cmd {
	case frame.CmdReadIDCode:
		return encode32(d.csr.IDCode())
	case frame.CmdReadCSR:
		return encode32(d.csr.Read(d.bus.Busy()))
	case frame.CmdReadAddr:
		return d.addr.Bytes(d.csr.AddrWidthBytes())
	case frame.CmdReadData:
		return d.pc.ReadData()
	case frame.CmdReadBuff:
		return d.pc.ReadBuff()
	default:
		return make([]byte, 4)
	}
}

// Write implements frame.Registers.
func (d *Device) Write(cmd frame.Command, payload []byte) {
	switch cmd {
	case frame.CmdWriteCSR:
		d.csr.Write(uint32(bitio.Uint64(payload)))
		d.link.SetMultidropAddress(d.csr.MDropAddr())
	case frame.CmdWriteAddr:
		d.addr.SetBytes(payload)
	case frame.CmdWriteAddrRead:
		d.pc.WriteAddrRead(payload)
	case frame.CmdWriteData:
		d.pc.WriteData(payload)
	}
}

// OnParityFail implements frame.Registers: latches CSR.EPARITY and
// drops the link.
func (d *Device) OnParityFail() {
	d.csr.SetEParity()
	d.link.Disconnect()
	d.log.Debug("parity failure, link disconnected")
}

// OnDisconnect implements frame.Registers: an explicit DISCONNECT
// command.
func (d *Device) OnDisconnect() {
	d.link.Disconnect()
	d.log.Debug("host disconnected")
}

func encode32(v uint32) []byte {
	buf := make([]byte, 4)
	bitio.PutUint64(buf, uint64(v))
	return buf
}
