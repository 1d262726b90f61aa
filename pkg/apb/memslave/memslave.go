// Package memslave implements an in-memory apb.Slave for tests and the
// standalone simulator: reads/writes go through a pluggable function
// pair instead of real hardware, with a configurable setup/access
// latency so the bus master's outstanding-transaction bookkeeping has
// something nontrivial to exercise.
package memslave

import "github.com/twdtm/dtm/pkg/apb"

func init() {
	apb.RegisterBackend("mem", func(string) (apb.Slave, error) {
		return New(1), nil
	})
}

// ReadFunc computes the data word backing a read from addr.
type ReadFunc func(addr uint32) uint32

// WriteFunc observes a write of data to addr.
type WriteFunc func(addr uint32, data uint32)

// ErrFunc reports whether a transfer at addr should complete with
// PSLVERR asserted.
type ErrFunc func(addr uint32, write bool) bool

// Slave is a synchronous, tick-driven memory model.
type Slave struct {
	latencyTicks int

	readFn  ReadFunc
	writeFn WriteFunc
	errFn   ErrFunc

	outstanding    bool
	pendingReq     apb.Request
	ticksRemaining int

	WriteLog []apb.Request // records every completed write, for test assertions
}

// New creates a Slave that takes latencyTicks Poll calls (>=1) to
// complete each transfer after Issue.
func New(latencyTicks int) *Slave {
	if latencyTicks < 1 {
		latencyTicks = 1
	}
	return &Slave{
		latencyTicks: latencyTicks,
		readFn:       func(addr uint32) uint32 { return addr },
	}
}

// SetReadFunc installs the function backing reads; the default echoes
// the address.
func (s *Slave) SetReadFunc(fn ReadFunc) { s.readFn = fn }

// SetWriteFunc installs an observer called when a write completes.
func (s *Slave) SetWriteFunc(fn WriteFunc) { s.writeFn = fn }

// SetErrFunc installs the function deciding PSLVERR injection.
func (s *Slave) SetErrFunc(fn ErrFunc) { s.errFn = fn }

// Issue starts a new transfer. The caller (apb bus master) guarantees
// at most one transfer is outstanding at a time.
func (s *Slave) Issue(req apb.Request) {
	s.outstanding = true
	s.pendingReq = req
	s.ticksRemaining = s.latencyTicks
}

// Poll advances the in-flight transfer by one tick.
func (s *Slave) Poll() (done bool, resp apb.Response) {
	if !s.outstanding {
		return false, apb.Response{}
	}
	s.ticksRemaining--
	if s.ticksRemaining > 0 {
		return false, apb.Response{}
	}
	s.outstanding = false
	req := s.pendingReq

	slverr := s.errFn != nil && s.errFn(req.Addr, req.Write)
	if req.Write {
		if s.writeFn != nil {
			s.writeFn(req.Addr, req.WData)
		}
		s.WriteLog = append(s.WriteLog, req)
		return true, apb.Response{SlvErr: slverr}
	}
	return true, apb.Response{RData: s.readFn(req.Addr), SlvErr: slverr}
}
