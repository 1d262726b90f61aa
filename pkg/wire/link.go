// Package wire implements the TWD link layer: sampling DI on rising DCK
// and detecting the prefix-free connect sequence. DO/DOE are driven by
// the framing decoder (pkg/frame) once connected.
package wire

import (
	"github.com/sirupsen/logrus"
)

// State is the link connection state.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Link tracks connection state and drives the prefix-free connect
// detector. It has no notion of commands or payloads; that is the
// framing decoder's job (pkg/frame).
type Link struct {
	logger    *logrus.Entry
	state     State
	detector  *Detector
	mdropAddr uint8
}

// NewLink creates a Link in Disconnected state for the given multidrop
// address (0-15).
func NewLink(logger *logrus.Entry, mdropAddr uint8) *Link {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	l := &Link{logger: logger.WithField("component", "wire")}
	l.SetMultidropAddress(mdropAddr)
	return l
}

// SetMultidropAddress rebuilds the connect-sequence template for a new
// target address. MDROPADDR persists across disconnects and only takes
// effect for future connect attempts.
func (l *Link) SetMultidropAddress(addr uint8) {
	l.mdropAddr = addr & 0xF
	l.detector = NewDetector(l.mdropAddr)
}

// State returns the current link state.
func (l *Link) State() State {
	return l.state
}

// Reset returns the link to Disconnected (DRST_N assertion).
func (l *Link) Reset() {
	l.state = Disconnected
	l.detector.Reset()
}

// Disconnect forces a transition to Disconnected, e.g. on an explicit
// DISCONNECT command or a parity failure.
func (l *Link) Disconnect() {
	if l.state != Disconnected {
		l.logger.Debug("disconnecting")
	}
	l.state = Disconnected
	l.detector.Reset()
}

// Sample feeds one bit of DI into the link state machine. It returns
// true exactly on the edge where the link transitions to Connected.
// While connected, Sample is a no-op (framing takes over bit
// consumption); callers should stop calling Sample once Connected.
func (l *Link) Sample(di bool) (justConnected bool) {
	if l.state == Connected {
		return false
	}
	matched := l.detector.Feed(di)
	if l.detector.MatchLength() > 0 {
		l.state = Connecting
	} else {
		l.state = Disconnected
	}
	if matched {
		l.state = Connected
		l.logger.WithField("mdropaddr", l.mdropAddr).Info("host connected")
		return true
	}
	return false
}
