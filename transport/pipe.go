package transport

import (
	"bytes"
	"io"
	"sync"
)

// memPort is a trivial in-memory Port: writes land in an internal
// buffer, reads drain it. Used in pairs (via NewPipe) so a test can
// drive one end as "the host" and the other as "the controller"
// without a real serial line.
type memPort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (m *memPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.buf.Write(p)
}

func (m *memPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buf.Len() == 0 {
		if m.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	return m.buf.Read(p)
}

func (m *memPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// loopback wires a reader side and a writer side of two independent
// memPort buffers into one Port, so writing to one pipe's "host" end
// is readable from its "controller" end and vice versa.
type loopback struct {
	out *memPort // written by us, read by the peer
	in  *memPort // written by the peer, read by us
}

func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }
func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Close() error {
	l.out.Close()
	l.in.Close()
	return nil
}

// NewPipe returns two connected in-memory ports: bytes written to a
// are readable from b, and vice versa. Intended for framer tests that
// drive both the host and controller sides of the protocol in one
// process.
func NewPipe() (a, b Port) {
	ab := &memPort{}
	ba := &memPort{}
	return &loopback{out: ab, in: ba}, &loopback{out: ba, in: ab}
}
