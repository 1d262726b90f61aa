// Package busmaster drives the downstream APB-like bus on behalf of the
// register unit: it tracks at most one outstanding transaction and
// reports completion asynchronously, independent of the wire clock.
package busmaster

import (
	"github.com/sirupsen/logrus"

	"github.com/twdtm/dtm/pkg/apb"
)

// Op identifies the kind of transaction outstanding on the bus.
type Op uint8

const (
	OpNone Op = iota
	OpRead
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "READ_ISSUED"
	case OpWrite:
		return "WRITE_ISSUED"
	default:
		return "NONE"
	}
}

// Result is the outcome of a completed transaction.
type Result struct {
	Op     Op
	Addr   uint32
	Data   uint32
	SlvErr bool
}

// Master owns the single-outstanding-transaction bus state machine.
type Master struct {
	logger *logrus.Entry
	slave  apb.Slave

	pending Op
	addr    uint32
}

// NewMaster creates a Master driving slave. slave may be nil; Issue*
// calls on a nil-slave Master record the transaction as pending but it
// never completes (Busy stays true), useful for exercising the register
// unit without a downstream bus attached.
func NewMaster(logger *logrus.Entry, slave apb.Slave) *Master {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Master{logger: logger.WithField("component", "busmaster"), slave: slave}
}

// Reset clears the outstanding-transaction bookkeeping (DRST_N
// assertion). It does not notify the slave; a transaction physically
// in flight on the downstream bus has no cancellation mechanism, so any
// in-flight Poll result that arrives afterward is simply ignored
// because Tick checks m.pending first.
func (m *Master) Reset() {
	m.pending = OpNone
}

// SetSlave rebinds the downstream slave, e.g. after device configuration
// selects a bus backend.
func (m *Master) SetSlave(slave apb.Slave) { m.slave = slave }

// Pending reports the current outstanding-operation state.
func (m *Master) Pending() Op { return m.pending }

// Busy mirrors CSR.BUSY: true whenever Pending() != OpNone.
func (m *Master) Busy() bool { return m.pending != OpNone }

// IssueRead starts a bus read from addr. Returns ErrBusy if a
// transaction is already outstanding; the caller is responsible for the
// resulting CSR.EBUSY semantics.
func (m *Master) IssueRead(addr uint32) error {
	if m.Busy() {
		return ErrBusy
	}
	m.pending = OpRead
	m.addr = addr
	if m.slave != nil {
		m.slave.Issue(apb.Request{Addr: addr, Write: false})
	}
	return nil
}

// IssueWrite starts a bus write of data to addr. Returns ErrBusy if a
// transaction is already outstanding.
func (m *Master) IssueWrite(addr, data uint32) error {
	if m.Busy() {
		return ErrBusy
	}
	m.pending = OpWrite
	m.addr = addr
	if m.slave != nil {
		m.slave.Issue(apb.Request{Addr: addr, Write: true, WData: data})
	}
	return nil
}

// Tick advances the bus by one slave-side cycle. It returns completed
// when the outstanding transaction has just reached PREADY.
func (m *Master) Tick() (result Result, completed bool) {
	if m.pending == OpNone || m.slave == nil {
		return Result{}, false
	}
	done, resp := m.slave.Poll()
	if !done {
		return Result{}, false
	}
	result = Result{Op: m.pending, Addr: m.addr, Data: resp.RData, SlvErr: resp.SlvErr}
	if resp.SlvErr {
		m.logger.WithField("addr", m.addr).Warn("bus transaction completed with PSLVERR")
	}
	m.pending = OpNone
	return result, true
}
