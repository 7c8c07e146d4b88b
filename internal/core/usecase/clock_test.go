package usecase

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/ports"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// manualClock hands out unbuffered tickers: a delivered tick means the
// previous tick has been fully processed.
type manualClock struct {
	mu        sync.Mutex
	now       time.Time
	tickers   []*manualTicker
	intervals []time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	c.intervals = append(c.intervals, d)
	return t
}

func (c *manualClock) ticker(t *testing.T, i int) *manualTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.tickers) {
		t.Fatalf("ticker %d was never created", i)
	}
	return c.tickers[i]
}

func (c *manualClock) tick(t *testing.T, i int) {
	t.Helper()
	tk := c.ticker(t, i)
	select {
	case tk.ch <- c.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker %d was not consumed", i)
	}
}

// assertSilent fails if the ticker is still being read.
func (c *manualClock) assertSilent(t *testing.T, i int) {
	t.Helper()
	tk := c.ticker(t, i)
	select {
	case tk.ch <- c.Now():
		t.Fatalf("ticker %d fired after polling ended", i)
	case <-time.After(30 * time.Millisecond):
	}
}
