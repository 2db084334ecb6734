// Package stats keeps per-flow state and packet counters and fans status
// reports out to observers.
package stats

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"go.uber.org/zap"
)

// Observer receives status reports. OnStatus is called with the
// aggregator lock held, in emission order, and must not block.
type Observer interface {
	OnStatus(flow.Status)
}

// Remover is implemented by observers that keep per-flow state.
type Remover interface {
	OnRemove(index int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(flow.Status)

func (f ObserverFunc) OnStatus(s flow.Status) { f(s) }

type entry struct {
	state    flow.State
	counters flow.Counters
	emitted  flow.Counters
}

type Aggregator struct {
	log      *zap.Logger
	interval time.Duration

	mu        sync.Mutex
	flows     map[int]*entry
	observers []Observer
}

func New(log *zap.Logger, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		log:      log.Named("stats"),
		interval: interval,
		flows:    make(map[int]*entry),
	}
}

// Subscribe adds an observer for every later report.
func (a *Aggregator) Subscribe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Transition records a state change and reports it immediately.
func (a *Aggregator) Transition(index int, state flow.State, reset bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.flows[index]
	if e == nil {
		e = &entry{}
		a.flows[index] = e
	}
	e.state = state
	if reset {
		e.counters = flow.Counters{}
	}
	a.emitLocked(index, e)
}

// Add accumulates packet counters. They are reported on the next tick.
// Counters of a flow without a state are dropped.
func (a *Aggregator) Add(index int, delta flow.Counters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.flows[index]; e != nil {
		e.counters = e.counters.Add(delta)
	}
}

// Remove forgets a flow.
func (a *Aggregator) Remove(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.flows, index)
	for _, o := range a.observers {
		if r, ok := o.(Remover); ok {
			r.OnRemove(index)
		}
	}
}

// Tick reports every flow whose counters changed since its last report.
func (a *Aggregator) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	indices := make([]int, 0, len(a.flows))
	for i, e := range a.flows {
		if e.counters != e.emitted {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)
	for _, i := range indices {
		a.emitLocked(i, a.flows[i])
	}
}

func (a *Aggregator) emitLocked(index int, e *entry) {
	e.emitted = e.counters
	st := flow.Status{Index: index, State: e.state, Counters: e.counters}
	for _, o := range a.observers {
		o.OnStatus(st)
	}
}

// Run ticks every interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	a.log.Debug("statistics ticker started", zap.Duration("interval", a.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.Tick()
		}
	}
}

// Get returns the current status of a flow.
func (a *Aggregator) Get(index int) (flow.Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.flows[index]
	if e == nil {
		return flow.Status{}, false
	}
	return flow.Status{Index: index, State: e.state, Counters: e.counters}, true
}

// Snapshot returns the status of every supervised flow in index order.
func (a *Aggregator) Snapshot() []flow.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]flow.Status, 0, len(a.flows))
	for i, e := range a.flows {
		out = append(out, flow.Status{Index: i, State: e.state, Counters: e.counters})
	}
	slices.SortFunc(out, func(x, y flow.Status) int { return x.Index - y.Index })
	return out
}
