package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"face-match-system/logging"
	"face-match-system/metrics"

	"go.uber.org/zap"
)

var (
	ErrClosed       = errors.New("observer closed")
	ErrSlowObserver = errors.New("observer buffer full")
)

// Observer is one connected client.
type Observer interface {
	Send(payload []byte) error
	Open() bool
	Close() error
}

// Hub is the process-local observer set.
type Hub struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64

	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		observers: make(map[uint64]Observer),
		logger:    logging.OrNop(logger),
		metrics:   m,
	}
}

// Add registers o and returns the id to pass to Remove.
func (h *Hub) Add(o Observer) uint64 {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.observers[id] = o
	n := len(h.observers)
	h.mu.Unlock()

	h.metrics.SetObservers(n)
	return id
}

func (h *Hub) Remove(id uint64) {
	h.mu.Lock()
	delete(h.observers, id)
	n := len(h.observers)
	h.mu.Unlock()

	h.metrics.SetObservers(n)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Broadcast encodes ev and delivers it to every local observer.
func (h *Hub) Broadcast(_ context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode broadcast event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	h.Deliver(payload)
}

// Deliver sends payload to each open observer and returns how many accepted it.
// Observers found closed or failing are pruned once the pass is over.
func (h *Hub) Deliver(payload []byte) int {
	h.mu.RLock()
	snapshot := make(map[uint64]Observer, len(h.observers))
	for id, o := range h.observers {
		snapshot[id] = o
	}
	h.mu.RUnlock()

	var dead []uint64
	delivered := 0
	for id, o := range snapshot {
		if !o.Open() {
			dead = append(dead, id)
			continue
		}
		if err := safeSend(o, payload); err != nil {
			h.logger.Debug("broadcast send failed", zap.Uint64("observer", id), zap.Error(err))
			h.metrics.Delivery("failed")
			dead = append(dead, id)
			continue
		}
		h.metrics.Delivery("sent")
		delivered++
	}

	if len(dead) > 0 {
		h.prune(dead)
	}
	return delivered
}

// Sweep drops observers that are no longer open without sending anything.
func (h *Hub) Sweep() int {
	h.mu.RLock()
	var dead []uint64
	for id, o := range h.observers {
		if !o.Open() {
			dead = append(dead, id)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.prune(dead)
	}
	return len(dead)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[uint64]Observer)
	h.mu.Unlock()

	for _, o := range observers {
		_ = o.Close()
	}
	h.metrics.SetObservers(0)
}

func (h *Hub) prune(dead []uint64) {
	var closed []Observer
	h.mu.Lock()
	for _, id := range dead {
		if o, ok := h.observers[id]; ok {
			delete(h.observers, id)
			closed = append(closed, o)
		}
	}
	n := len(h.observers)
	h.mu.Unlock()

	for _, o := range closed {
		_ = o.Close()
	}
	h.metrics.SetObservers(n)
}

func safeSend(o Observer, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.Send(payload)
}
