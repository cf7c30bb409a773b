package broadcast

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 16
)

// wsConn is the subset of *websocket.Conn the observer writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSObserver queues events for a websocket connection. Run is the only writer;
// Send never blocks, so a stalled peer fills its buffer and gets dropped.
type WSObserver struct {
	conn      wsConn
	queue     chan []byte
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func NewWSObserver(conn wsConn) *WSObserver {
	return &WSObserver{
		conn:  conn,
		queue: make(chan []byte, wsBuffer),
		done:  make(chan struct{}),
	}
}

func (o *WSObserver) Send(payload []byte) error {
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

func (o *WSObserver) Open() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// MarkClosed stops delivery without touching the connection.
func (o *WSObserver) MarkClosed() {
	o.doneOnce.Do(func() { close(o.done) })
}

// Close is safe to call more than once; only the first call closes the connection.
func (o *WSObserver) Close() error {
	o.MarkClosed()
	var err error
	o.closeOnce.Do(func() { err = o.conn.Close() })
	return err
}

// Run writes queued events until the observer closes or a write fails.
// A failed write marks the observer closed.
func (o *WSObserver) Run() error {
	for {
		select {
		case <-o.done:
			return nil
		case payload := <-o.queue:
			_ = o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := o.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				o.MarkClosed()
				return err
			}
		}
	}
}
