// Package mailbox implements a per-connection FIFO of outbound push frames and a lock-striped map from connection
// id to mailbox.
package mailbox

import (
	"sync"
)

// queueSize bounds the mailbox as a hardening measure against a slow or stalled reader backing up memory
// indefinitely. Enqueue never blocks on it; once the buffer is full the mailbox closes instead.
const queueSize = 256

// Mailbox is an ordered, multi-producer/single-consumer FIFO of push frames for one connection. It is owned by the
// connection handler for as long as the connection lives. Enqueue never blocks: once the buffer is full the mailbox
// closes itself rather than apply backpressure to the caller.
type Mailbox struct {
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
	onOverflow func()
}

// New creates an empty Mailbox. onOverflow, if non-nil, is invoked once if the queue fills up and the mailbox closes
// itself as a result; the connection handler uses this hook to tear down the underlying socket.
func New(onOverflow func()) *Mailbox {
	return &Mailbox{
		out:        make(chan []byte, queueSize),
		done:       make(chan struct{}),
		onOverflow: onOverflow,
	}
}

// Enqueue appends frame to the mailbox. It never blocks. Enqueuing into a closed mailbox is a silent no-op, treated
// as success from the caller's perspective. Enqueuing into a full, open mailbox closes the mailbox rather than
// block or drop silently.
func (m *Mailbox) Enqueue(frame []byte) {
	select {
	case <-m.done:
		return
	default:
	}

	select {
	case m.out <- frame:
	case <-m.done:
	default:
		m.Close()
		if m.onOverflow != nil {
			m.onOverflow()
		}
	}
}

// Close signals the drain task to terminate. It is idempotent and safe to call from multiple goroutines; only the
// first call has any effect. The send channel itself is never closed, so a racing Enqueue can never panic.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Frames returns the channel the writer task drains. Done returns the channel that is closed when the mailbox is
// torn down; a writer task selects on both so it can exit promptly, draining any frames already buffered before
// Close() before it does so. The gateway's writer then closes the socket without sending a WebSocket close frame.
func (m *Mailbox) Frames() <-chan []byte { return m.out }
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Drain returns any frames still buffered at the moment of the call without blocking. Callers use this after Done()
// fires to flush remaining frames before the connection tears down.
func (m *Mailbox) Drain() [][]byte {
	var out [][]byte
	for {
		select {
		case frame := <-m.out:
			out = append(out, frame)
		default:
			return out
		}
	}
}
