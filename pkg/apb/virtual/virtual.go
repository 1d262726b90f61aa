// Package virtual implements an apb.Slave backend over a Unix domain
// socket, for driving the bus master against an external process (e.g.
// an RTL simulator or another DTM instance) the way pkg/can/virtual
// drives CANopen traffic over a TCP broker.
package virtual

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/twdtm/dtm/pkg/apb"
)

func init() {
	apb.RegisterBackend("unix", NewSlave)
	apb.RegisterBackend("virtual", NewSlave)
}

// wireReq/wireResp are the fixed 9-byte / 5-byte frames exchanged over
// the socket: addr(4 LE) | write(1) | wdata(4 LE), and rdata(4 LE) |
// slverr(1).
const reqSize = 9
const respSize = 5

// Slave connects to a Unix domain socket at path and forwards each
// Request/Response pair across it. The remote peer is expected to
// answer each request exactly once, in order.
type Slave struct {
	fd int

	mu          sync.Mutex
	outstanding bool
	respReady   bool
	resp        apb.Response
}

// NewSlave dials the Unix domain socket at path (the channel string).
func NewSlave(path string) (apb.Slave, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("apb/virtual: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("apb/virtual: connect %s: %w", path, err)
	}
	return &Slave{fd: fd}, nil
}

// Issue writes the request frame and blocks for the matching response.
// The caller (the bus master) only ever has one transfer outstanding,
// so a synchronous round trip here does not violate the Slave
// contract: Poll simply reports the already-completed result.
func (s *Slave) Issue(req apb.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, reqSize)
	binary.LittleEndian.PutUint32(buf[0:4], req.Addr)
	if req.Write {
		buf[4] = 1
	}
	binary.LittleEndian.PutUint32(buf[5:9], req.WData)

	if _, err := unix.Write(s.fd, buf); err != nil {
		s.respReady = true
		s.resp = apb.Response{SlvErr: true}
		s.outstanding = true
		return
	}

	reply := make([]byte, respSize)
	if err := readFull(s.fd, reply); err != nil {
		s.resp = apb.Response{SlvErr: true}
	} else {
		s.resp = apb.Response{
			RData:  binary.LittleEndian.Uint32(reply[0:4]),
			SlvErr: reply[4] != 0,
		}
	}
	s.respReady = true
	s.outstanding = true
}

// Poll reports the response latched by Issue. Because Issue already
// blocked for the round trip, the result is always ready on the very
// next Poll.
func (s *Slave) Poll() (done bool, resp apb.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.outstanding || !s.respReady {
		return false, apb.Response{}
	}
	s.outstanding = false
	s.respReady = false
	return true, s.resp
}

// Close releases the underlying socket.
func (s *Slave) Close() error {
	return unix.Close(s.fd)
}

func readFull(fd int, buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := unix.Read(fd, buf[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("apb/virtual: peer closed connection")
		}
		off += n
	}
	return nil
}
