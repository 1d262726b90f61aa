// Package pipeline implements the DTM's read-ahead pipeline controller:
// R.DATA returns the previous bus read and dispatches the next one,
// R.BUFF drains the same landing register without dispatching, and
// AINCR advances ADDR around both reads and writes.
//
// DATA and BUFF are modelled as a single shared landing register: R.DATA
// and R.BUFF read the same underlying value, the former also kicking
// off the next fetch, the latter just returning the current pipeline
// stage's tail.
package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/twdtm/dtm/internal/bitio"
	"github.com/twdtm/dtm/pkg/busmaster"
	"github.com/twdtm/dtm/pkg/csr"
)

// Controller wires the CSR/ADDR register pair to the bus master,
// implementing the pipelined-read and AINCR-on-write semantics.
type Controller struct {
	logger *logrus.Entry
	csr    *csr.File
	addr   *csr.Addr
	bus    *busmaster.Master

	landing uint32 // DATA/BUFF shared landing register
}

// NewController creates a Controller over the given CSR file, ADDR
// register, and bus master.
func NewController(logger *logrus.Entry, file *csr.File, addr *csr.Addr, bus *busmaster.Master) *Controller {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{logger: logger.WithField("component", "pipeline"), csr: file, addr: addr, bus: bus}
}

// Reset clears the landing register (DRST_N assertion). ADDR and the
// bus master are reset independently by their own owners.
func (c *Controller) Reset() {
	c.landing = 0
}

// ReadData implements R.DATA: returns the landing register's pre-
// dispatch value, then dispatches a fresh read from the current ADDR
// (advancing ADDR afterward if AINCR is set).
func (c *Controller) ReadData() []byte {
	out := c.encode(c.landing)
	c.dispatchRead()
	return out
}

// ReadBuff implements R.BUFF: returns the landing register's current
// value without touching the bus or ADDR.
func (c *Controller) ReadBuff() []byte {
	return c.encode(c.landing)
}

// WriteAddrRead implements W.ADDR.R: captures ADDR, then behaves like
// the dispatch half of ReadData (including the AINCR advance).
func (c *Controller) WriteAddrRead(payload []byte) {
	c.addr.SetBytes(payload)
	c.dispatchRead()
}

// WriteData implements W.DATA: issues a bus write of payload to the
// current ADDR. ADDR only advances once the write completes (see
// OnBusResult), matching the "each completed W.DATA" wording distinct
// from the read path's "advances after dispatch" wording.
func (c *Controller) WriteData(payload []byte) {
	data := uint32(bitio.Uint64(payload))
	if err := c.bus.IssueWrite(uint32(c.addr.Get()), data); err != nil {
		c.csr.SetEBusy()
		c.logger.WithField("addr", c.addr.Get()).WithError(err).Debug("W.DATA dropped, bus busy")
	}
}

// OnBusResult applies a completed bus transaction's effects: landing
// register update for reads, sticky EBUSFAULT for PSLVERR, and the
// write-side AINCR advance.
func (c *Controller) OnBusResult(result busmaster.Result) {
	if result.SlvErr {
		c.csr.SetEBusFault()
	}
	switch result.Op {
	case busmaster.OpRead:
		c.landing = result.Data
	case busmaster.OpWrite:
		if c.csr.Aincr() {
			c.addr.Advance(1)
		}
	}
}

// dispatchRead issues a bus read from the current ADDR. On success it
// advances ADDR immediately (if AINCR is set) so ADDR always points to
// the next word that will be read, not the one in flight. On failure
// (bus busy) it latches EBUSY and leaves ADDR untouched.
//
// The advance step is always 1, not (ASIZE+1) bytes: ADDR lands on
// A+i+1 regardless of the configured ADDR width.
func (c *Controller) dispatchRead() {
	if err := c.bus.IssueRead(uint32(c.addr.Get())); err != nil {
		c.csr.SetEBusy()
		c.logger.WithField("addr", c.addr.Get()).WithError(err).Debug("read dispatch dropped, bus busy")
		return
	}
	if c.csr.Aincr() {
		c.addr.Advance(1)
	}
}

func (c *Controller) encode(v uint32) []byte {
	buf := make([]byte, 4)
	bitio.PutUint64(buf, uint64(v))
	return buf
}
