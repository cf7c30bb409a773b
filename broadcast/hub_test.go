package broadcast

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"face-match-system/metrics"
	"face-match-system/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

type fakeObserver struct {
	mu       sync.Mutex
	received [][]byte
	open     atomic.Bool
	closed   atomic.Int32
	failWith error
	panics   bool
}

func newFakeObserver(open bool) *fakeObserver {
	o := &fakeObserver{}
	o.open.Store(open)
	return o
}

func (o *fakeObserver) Send(p []byte) error {
	if o.panics {
		panic("write on closed socket")
	}
	if o.failWith != nil {
		return o.failWith
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, p)
	return nil
}

func (o *fakeObserver) Open() bool   { return o.open.Load() }
func (o *fakeObserver) Close() error { o.closed.Add(1); o.open.Store(false); return nil }

func (o *fakeObserver) messages() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.received...)
}

func sampleMatch() *models.Match {
	photo := "ZmFrZQ=="
	return &models.Match{
		ID:           "m1",
		CreatorID:    "a",
		InvitedID:    "b",
		CreatorPhoto: photo,
		InvitedPhoto: &photo,
		Status:       models.MatchStatusReady,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHubDeliversToOpenAndPrunesClosed(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(zaptest.NewLogger(t), m)
	open := newFakeObserver(true)
	closed := newFakeObserver(false)
	hub.Add(open)
	hub.Add(closed)

	hub.Broadcast(context.Background(), NewMatchEvent(EventMatchUpdated, sampleMatch()))

	if got := len(open.messages()); got != 1 {
		t.Fatalf("expected open observer to get 1 message, got %d", got)
	}
	if got := len(closed.messages()); got != 0 {
		t.Fatalf("expected closed observer to get nothing, got %d", got)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected closed observer pruned, len=%d", hub.Len())
	}
	if got := testutil.ToFloat64(m.Observers); got != 1 {
		t.Fatalf("expected observers gauge 1, got %v", got)
	}
}

func TestHubEventOmitsPhotos(t *testing.T) {
	hub := NewHub(nil, nil)
	o := newFakeObserver(true)
	hub.Add(o)

	hub.Broadcast(context.Background(), NewMatchEvent(EventMatchCreated, sampleMatch()))

	msgs := o.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if bytes.Contains(msgs[0], []byte("ZmFrZQ")) {
		t.Fatalf("photo leaked into broadcast: %s", msgs[0])
	}
	var ev Event
	if err := json.Unmarshal(msgs[0], &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventMatchCreated || ev.Match == nil || ev.Match.ID != "m1" || ev.Match.Status != models.MatchStatusReady {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHubSurvivesFailingAndPanickingObservers(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	good := newFakeObserver(true)
	failing := newFakeObserver(true)
	failing.failWith = errors.New("broken pipe")
	panicking := newFakeObserver(true)
	panicking.panics = true

	hub.Add(good)
	hub.Add(failing)
	hub.Add(panicking)

	if n := hub.Deliver([]byte(`{}`)); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected failing observers pruned, len=%d", hub.Len())
	}
	if failing.closed.Load() != 1 || panicking.closed.Load() != 1 {
		t.Fatal("expected pruned observers to be closed once")
	}
}

func TestHubSweep(t *testing.T) {
	hub := NewHub(nil, nil)
	a := newFakeObserver(true)
	b := newFakeObserver(true)
	hub.Add(a)
	hub.Add(b)

	b.open.Store(false)
	if n := hub.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", hub.Len())
	}
}

func TestHubConcurrentAddRemoveBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := hub.Add(newFakeObserver(j%2 == 0))
				if j%3 == 0 {
					hub.Remove(id)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Deliver([]byte(`{"type":"match_updated"}`))
			}
		}()
	}
	wg.Wait()

	hub.Deliver([]byte(`{}`))
	hub.Sweep()
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for id, o := range hub.observers {
		if !o.Open() {
			t.Fatalf("observer %d should have been pruned", id)
		}
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nil, nil)
	o := newFakeObserver(true)
	hub.Add(o)

	hub.Close()
	if hub.Len() != 0 || o.closed.Load() != 1 {
		t.Fatalf("expected hub emptied and observer closed")
	}
}

type recordingConn struct {
	mu     sync.Mutex
	writes []string
	err    error
	closed bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (c *recordingConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func TestWSObserver(t *testing.T) {
	conn := &recordingConn{}
	o := NewWSObserver(conn)

	done := make(chan error, 1)
	go func() { done <- o.Run() }()

	if err := o.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, func() bool { return len(conn.written()) == 1 })

	o.MarkClosed()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if o.Open() {
		t.Fatal("expected observer closed")
	}
	if err := o.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := conn.written(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected writes %v", got)
	}
}

func TestWSObserverWriteErrorMarksClosed(t *testing.T) {
	conn := &recordingConn{err: errors.New("reset by peer")}
	o := NewWSObserver(conn)

	if err := o.Send([]byte("x")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := o.Run(); err == nil {
		t.Fatal("expected write error from run")
	}
	if o.Open() {
		t.Fatal("expected write failure to close observer")
	}
}

// stalledConn blocks every write until the connection is closed.
type stalledConn struct {
	release chan struct{}
	once    sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{release: make(chan struct{})}
}

func (c *stalledConn) WriteMessage(int, []byte) error {
	<-c.release
	return ErrClosed
}

func (c *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (c *stalledConn) Close() error {
	c.once.Do(func() { close(c.release) })
	return nil
}

func TestHubDropsStalledWebsocketWithoutBlocking(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	conn := newStalledConn()
	o := NewWSObserver(conn)
	go func() { _ = o.Run() }()
	hub.Add(o)

	healthy := newFakeObserver(true)
	hub.Add(healthy)

	start := time.Now()
	for i := 0; i < wsBuffer+2; i++ {
		hub.Deliver([]byte("x"))
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("delivery blocked on stalled peer for %s", elapsed)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected stalled observer pruned, %d left", hub.Len())
	}
	if got := len(healthy.messages()); got != wsBuffer+2 {
		t.Fatalf("expected healthy observer to get every event, got %d", got)
	}
	if o.Open() {
		t.Fatal("expected stalled observer closed")
	}
	select {
	case <-conn.release:
	default:
		t.Fatal("expected stalled connection closed")
	}
}

func TestSSEObserverStream(t *testing.T) {
	o := NewSSEObserver()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if err := o.Send([]byte(`{"type":"match_created"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- o.Stream(w, time.Hour) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(o.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// give the stream loop time to flush what it dequeued
	time.Sleep(20 * time.Millisecond)
	o.Close()

	if err := <-done; err != nil {
		t.Fatalf("stream: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, ":\n\n") || !strings.Contains(out, "data: {\"type\":\"match_created\"}\n\n") {
		t.Fatalf("unexpected stream output %q", out)
	}
	if o.Open() {
		t.Fatal("expected observer closed after stream")
	}
}

func TestSSEObserverDropsWhenFull(t *testing.T) {
	o := NewSSEObserver()
	for i := 0; i < sseBuffer; i++ {
		if err := o.Send([]byte("x")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := o.Send([]byte("x")); !errors.Is(err, ErrSlowObserver) {
		t.Fatalf("expected ErrSlowObserver, got %v", err)
	}
	o.Close()
	if err := o.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWSObserverCloseOnce(t *testing.T) {
	conn := &recordingConn{}
	o := NewWSObserver(conn)
	o.MarkClosed()

	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = o.Close()
	if !conn.closed {
		t.Fatal("expected connection closed even after MarkClosed")
	}
}
