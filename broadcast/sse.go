package broadcast

import (
	"bufio"
	"fmt"
	"sync"
	"time"
)

const sseBuffer = 16

// SSEObserver queues events for a server-sent events stream.
// A client that falls a full buffer behind is dropped.
type SSEObserver struct {
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func NewSSEObserver() *SSEObserver {
	return &SSEObserver{
		queue: make(chan []byte, sseBuffer),
		done:  make(chan struct{}),
	}
}

func (o *SSEObserver) Send(payload []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.queue <- payload:
		return nil
	default:
		return ErrSlowObserver
	}
}

func (o *SSEObserver) Open() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

func (o *SSEObserver) Close() error {
	o.once.Do(func() { close(o.done) })
	return nil
}

// Stream writes queued events to w until the observer closes or a write fails.
// A comment line goes out every keepalive so proxies hold the connection.
func (o *SSEObserver) Stream(w *bufio.Writer, keepalive time.Duration) error {
	defer o.Close()

	if err := writeFrame(w, ":\n\n"); err != nil {
		return err
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		// queued events go out before a pending close is honoured
		select {
		case payload := <-o.queue:
			if err := writeFrame(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-o.done:
			return nil
		case payload := <-o.queue:
			if err := writeFrame(w, "data: %s\n\n", payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := writeFrame(w, ":\n\n"); err != nil {
				return err
			}
		}
	}
}

func writeFrame(w *bufio.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return err
	}
	return w.Flush()
}
