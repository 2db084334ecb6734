// Package enginetest provides an in-memory engine driven by tests.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/engine"
)

// Engine records every build and lets tests inject engine events.
type Engine struct {
	// LiveUpdates makes handles accept Update instead of returning
	// engine.ErrLiveUpdateUnsupported.
	LiveUpdates bool
	// BuildDelay stretches every Build.
	BuildDelay time.Duration

	mu        sync.Mutex
	live      map[int]*Handle
	history   map[int][]*Handle
	failBuild map[int]error
	overlaps  int
	building  int
	maxBuild  int
	block     map[int]chan struct{}

	built chan *Handle
}

func New() *Engine {
	return &Engine{
		live:      make(map[int]*Handle),
		history:   make(map[int][]*Handle),
		failBuild: make(map[int]error),
		block:     make(map[int]chan struct{}),
		built:     make(chan *Handle, 1024),
	}
}

// Built delivers each successfully built handle.
func (e *Engine) Built() <-chan *Handle { return e.built }

// FailBuilds makes builds of index fail with err until cleared with nil.
func (e *Engine) FailBuilds(index int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failBuild, index)
		return
	}
	e.failBuild[index] = err
}

// BlockTeardown makes teardowns of index hang until the returned func is
// called or the teardown context expires.
func (e *Engine) BlockTeardown(index int) (release func()) {
	ch := make(chan struct{})
	e.mu.Lock()
	e.block[index] = ch
	e.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.block, index)
			e.mu.Unlock()
			close(ch)
		})
	}
}

// Overlaps counts builds that happened while another handle of the same
// index was still live.
func (e *Engine) Overlaps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlaps
}

// MaxConcurrentBuilds is the highest number of overlapping Build calls seen.
func (e *Engine) MaxConcurrentBuilds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxBuild
}

// Live returns the live handle of index, if any.
func (e *Engine) Live(index int) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live[index]
}

// Builds returns how many handles were built for index.
func (e *Engine) Builds(index int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history[index])
}

func (e *Engine) Build(ctx context.Context, p flow.Pipeline) (engine.Handle, error) {
	e.mu.Lock()
	e.building++
	e.maxBuild = max(e.maxBuild, e.building)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.building--
		e.mu.Unlock()
	}()

	if e.BuildDelay > 0 {
		select {
		case <-time.After(e.BuildDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err, ok := e.failBuild[p.Index]; ok {
		e.mu.Unlock()
		return nil, err
	}
	if e.live[p.Index] != nil {
		e.overlaps++
	}
	h := &Handle{
		e:        e,
		events:   make(chan engine.Event, 64),
		done:     make(chan struct{}),
		pipeline: p,
	}
	e.live[p.Index] = h
	e.history[p.Index] = append(e.history[p.Index], h)
	e.mu.Unlock()

	e.built <- h
	return h, nil
}

func (e *Engine) release(h *Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live[h.pipeline.Index] == h {
		delete(e.live, h.pipeline.Index)
	}
}

// Handle is an in-memory pipeline.
type Handle struct {
	e *Engine

	mu       sync.Mutex
	events   chan engine.Event
	closed   bool
	pipeline flow.Pipeline
	updates  []flow.Pipeline

	done      chan struct{}
	teardowns atomic.Int32
}

func (h *Handle) Events() <-chan engine.Event { return h.events }

// Pipeline returns the description the handle was built or last updated with.
func (h *Handle) Pipeline() flow.Pipeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipeline
}

// Updates returns the live updates applied so far.
func (h *Handle) Updates() []flow.Pipeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]flow.Pipeline(nil), h.updates...)
}

// Done is closed once the handle was torn down or failed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Teardowns counts Teardown calls.
func (h *Handle) Teardowns() int { return int(h.teardowns.Load()) }

func (h *Handle) Update(p flow.Pipeline) error {
	if !h.e.LiveUpdates {
		return engine.ErrLiveUpdateUnsupported
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("pipeline gone")
	}
	h.pipeline = p
	h.updates = append(h.updates, p)
	return nil
}

func (h *Handle) Teardown(ctx context.Context) error {
	h.teardowns.Add(1)

	h.e.mu.Lock()
	block := h.e.block[h.pipeline.Index]
	h.e.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.close()
	h.e.release(h)
	return nil
}

// FirstMedia emits EventFirstMedia.
func (h *Handle) FirstMedia() bool {
	return h.emit(engine.Event{Kind: engine.EventFirstMedia})
}

// Packets emits EventPacketDelta.
func (h *Handle) Packets(pushed, lost, late uint64) bool {
	return h.emit(engine.Event{Kind: engine.EventPacketDelta, Counters: flow.Counters{Pushed: pushed, Lost: lost, Late: late}})
}

// Fail emits EventError.
func (h *Handle) Fail(reason string) bool {
	return h.emit(engine.Event{Kind: engine.EventError, Reason: reason})
}

// Silence emits EventSilence.
func (h *Handle) Silence() bool {
	return h.emit(engine.Event{Kind: engine.EventSilence, Reason: "timeout"})
}

// Crash closes the event channel without a teardown.
func (h *Handle) Crash() {
	h.close()
}

// emit reports false once the handle is gone.
func (h *Handle) emit(ev engine.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	select {
	case h.events <- ev:
		return true
	default:
		return false
	}
}

func (h *Handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
	close(h.done)
}
