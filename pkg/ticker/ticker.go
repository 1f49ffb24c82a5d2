// Package ticker drives per-frame work on the main thread.
//
// A Source produces UI ticks at a fixed interval and steps every active
// Ticker on the thread its dispatch function targets. A runtime instance
// owns one Source and stops it on teardown, which unsubscribes all of its
// tickers at once.
package ticker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/errors"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 16 * time.Millisecond

// Ticker calls a callback on each tick while active.
//
// The callback receives the elapsed time since Start was called.
type Ticker struct {
	source   *Source
	callback func(elapsed time.Duration)

	mu       sync.Mutex
	isActive bool
	start    time.Time
}

// Start activates the ticker.
func (t *Ticker) Start() {
	t.mu.Lock()
	if t.isActive {
		t.mu.Unlock()
		return
	}
	t.isActive = true
	t.start = Now()
	t.mu.Unlock()
	t.source.add(t)
}

// Stop deactivates the ticker.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.isActive {
		t.mu.Unlock()
		return
	}
	t.isActive = false
	t.mu.Unlock()
	t.source.remove(t)
}

// IsActive returns whether the ticker is currently running.
func (t *Ticker) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isActive
}

// Elapsed returns the time since the ticker started.
func (t *Ticker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isActive {
		return 0
	}
	return Now().Sub(t.start)
}

// Source owns a set of tickers and the loop that steps them.
type Source struct {
	interval time.Duration
	dispatch func(func())

	mu      sync.Mutex
	tickers map[*Ticker]struct{}
	order   []*Ticker
	stop    chan struct{}
	done    chan struct{}
}

// NewSource creates a stopped Source. Each tick is delivered through
// dispatch, which normally schedules onto the main thread.
func NewSource(interval time.Duration, dispatch func(func())) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Source{
		interval: interval,
		dispatch: dispatch,
		tickers:  make(map[*Ticker]struct{}),
	}
}

// NewTicker creates an inactive ticker bound to s.
func (s *Source) NewTicker(callback func(elapsed time.Duration)) *Ticker {
	return &Ticker{source: s, callback: callback}
}

func (s *Source) add(t *Ticker) {
	s.mu.Lock()
	if _, ok := s.tickers[t]; !ok {
		s.tickers[t] = struct{}{}
		s.order = append(s.order, t)
	}
	s.mu.Unlock()
}

func (s *Source) remove(t *Ticker) {
	s.mu.Lock()
	if _, ok := s.tickers[t]; ok {
		delete(s.tickers, t)
		for i, o := range s.order {
			if o == t {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
}

// Step advances all active tickers in activation order.
// This should be called once per tick on the main thread.
func (s *Source) Step() {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	// Copy so callbacks may start or stop tickers.
	tickers := append([]*Ticker(nil), s.order...)
	s.mu.Unlock()

	now := Now()
	for _, t := range tickers {
		t.mu.Lock()
		active, start := t.isActive, t.start
		t.mu.Unlock()
		if active && t.callback != nil {
			t.callback(now.Sub(start))
		}
	}
}

// HasActiveTickers returns true if any tickers are active.
func (s *Source) HasActiveTickers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order) > 0
}

// Start begins producing ticks. Calling Start on a running Source is a no-op.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	errors.Logger().Debug("ui tick started", zap.Duration("interval", s.interval))
}

// Stop halts tick production and deactivates every ticker.
func (s *Source) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	tickers := s.order
	s.order = nil
	s.tickers = make(map[*Ticker]struct{})
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		errors.Logger().Debug("ui tick stopped")
	}
	for _, t := range tickers {
		t.mu.Lock()
		t.isActive = false
		t.mu.Unlock()
	}
}

// Running reports whether the Source is producing ticks.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Source) run(stop, done chan struct{}) {
	defer close(done)
	tk := time.NewTicker(s.interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			if !s.HasActiveTickers() {
				continue
			}
			if s.dispatch != nil {
				s.dispatch(s.Step)
			} else {
				s.Step()
			}
		}
	}
}
