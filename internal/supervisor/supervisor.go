// Package supervisor runs one supervision goroutine per active flow. Each
// goroutine owns its pipeline handle, watchdog and retry timer; the rest
// of the system talks to it through a coalescing mailbox.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/engine"
	"go.uber.org/zap"
)

// Reporter receives state transitions and packet counters. Calls come
// from supervision goroutines and must not block.
type Reporter interface {
	// Transition reports a new state. reset is set when the flow's
	// counters start over.
	Transition(index int, state flow.State, reset bool)
	Add(index int, delta flow.Counters)
	// Remove reports that the flow has no supervision goroutine anymore.
	Remove(index int)
}

type Options struct {
	// BuildSlots bounds concurrent Engine.Build calls.
	BuildSlots int64
	// TeardownTimeout bounds every Handle.Teardown.
	TeardownTimeout time.Duration
	// RetryBase and RetryMax shape the exponential retry backoff.
	RetryBase time.Duration
	RetryMax  time.Duration
}

func (o *Options) applyDefaults() {
	if o.BuildSlots <= 0 {
		o.BuildSlots = 8
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = 5 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
}

type Supervisor struct {
	log   *zap.Logger
	eng   engine.Engine
	rep   Reporter
	opts  Options
	slots *slotPool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	units  [flow.MaxFlows]*unit
	tail   [flow.MaxFlows]<-chan struct{} // done of the newest unit per index
}

func New(log *zap.Logger, eng engine.Engine, rep Reporter, opts Options) *Supervisor {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		log:    log.Named("supervisor"),
		eng:    eng,
		rep:    rep,
		opts:   opts,
		slots:  newSlotPool(opts.BuildSlots),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Apply asks for flow p.Index to run as described by p. restart forces a
// rebuild of a running pipeline; otherwise the change is applied live
// when the engine supports it. An empty location stops the flow. Apply
// never blocks on the engine.
func (s *Supervisor) Apply(p flow.Pipeline, restart bool) {
	if p.Index < 0 || p.Index >= flow.MaxFlows {
		return
	}
	if p.Location == "" {
		s.Remove(p.Index)
		return
	}
	if p.Timeout <= 0 {
		p.Timeout = flow.DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if u := s.units[p.Index]; u != nil {
		u.post(command{pipeline: p, restart: restart})
		return
	}

	u := newUnit(s, p, s.tail[p.Index])
	s.units[p.Index] = u
	s.tail[p.Index] = u.done
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		u.run(s.ctx)
	}()
}

// Remove stops flow index and tears its pipeline down.
func (s *Supervisor) Remove(index int) {
	if index < 0 || index >= flow.MaxFlows {
		return
	}
	s.mu.Lock()
	u := s.units[index]
	s.units[index] = nil
	s.mu.Unlock()

	if u != nil {
		u.post(command{stop: true})
	}
}

// Running reports whether flow index has a supervision goroutine.
func (s *Supervisor) Running(index int) bool {
	if index < 0 || index >= flow.MaxFlows {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units[index] != nil
}

// Shutdown stops every flow. Each teardown is bounded by the teardown
// timeout; Shutdown returns ctx.Err() if the units did not finish in time.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.units = [flow.MaxFlows]*unit{}
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("all flows stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
