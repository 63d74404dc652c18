// Package transport is the reference host-protocol adapter spec.md
// places out of core scope ("an external collaborator appearing only
// through its contract," §6) but documents precisely enough to
// implement: line-based G-code framing with one "ok" per line, and
// four real-time single-byte commands that bypass the line queue.
package transport

import "io"

// Port is the byte-stream abstraction both backends implement: a real
// UART and an in-memory pipe for tests, so Framer never imports
// github.com/tarm/serial directly.
type Port interface {
	io.ReadWriteCloser
}
