package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/engine"
	"go.uber.org/zap"
)

type command struct {
	pipeline flow.Pipeline
	restart  bool
	stop     bool
}

// unit supervises one flow index. All fields below mu are owned by the
// run goroutine.
type unit struct {
	index int
	log   *zap.Logger
	sup   *Supervisor
	prev  <-chan struct{} // done of the previous unit of this index
	done  chan struct{}

	mu      sync.Mutex
	pending *command
	notify  chan struct{}

	pipeline flow.Pipeline
	state    flow.State
	handle   engine.Handle
	events   <-chan engine.Event
	attempt  int

	watchdog *time.Timer
	watchC   <-chan time.Time
	retry    *time.Timer
	retryC   <-chan time.Time
}

func newUnit(s *Supervisor, p flow.Pipeline, prev <-chan struct{}) *unit {
	return &unit{
		index:    p.Index,
		log:      s.log.With(zap.Int("flow", p.Index)),
		sup:      s,
		prev:     prev,
		done:     make(chan struct{}),
		notify:   make(chan struct{}, 1),
		pipeline: p,
	}
}

// post hands a command to the unit. Pending commands coalesce: the latest
// pipeline wins and a requested restart or stop is never lost.
func (u *unit) post(c command) {
	u.mu.Lock()
	if u.pending != nil {
		c.restart = c.restart || u.pending.restart
		c.stop = c.stop || u.pending.stop
	}
	u.pending = &c
	u.mu.Unlock()

	select {
	case u.notify <- struct{}{}:
	default:
	}
}

func (u *unit) take() (command, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pending == nil {
		return command{}, false
	}
	c := *u.pending
	u.pending = nil
	return c, true
}

func (u *unit) run(ctx context.Context) {
	defer close(u.done)
	defer u.sup.rep.Remove(u.index)

	if u.prev != nil {
		select {
		case <-u.prev:
		case <-ctx.Done():
			return
		}
	}
	if c, ok := u.take(); ok {
		if c.stop {
			return
		}
		u.pipeline = c.pipeline
	}

	u.start(ctx, TriggerStart)
	for {
		select {
		case <-ctx.Done():
			u.stop(ctx)
			return

		case <-u.notify:
			c, ok := u.take()
			if !ok {
				continue
			}
			if c.stop {
				u.stop(ctx)
				return
			}
			u.reconfigure(ctx, c)

		case ev, ok := <-u.events:
			if !ok {
				u.fail(TriggerFatal, "engine event channel closed")
				continue
			}
			u.handleEvent(ev)

		case <-u.watchC:
			u.watchC = nil
			u.fail(TriggerTimeout, "no media within "+u.pipeline.Timeout.String())

		case <-u.retryC:
			u.retryC = nil
			u.start(ctx, TriggerRetry)
		}
	}
}

func (u *unit) transition(t Trigger) bool {
	next, ok := Next(u.state, t)
	if !ok {
		return false
	}
	reset := next == flow.StateStarting
	if next != u.state || reset {
		u.log.Debug("flow state", zap.String("from", string(u.state)), zap.String("to", string(next)), zap.Stringer("trigger", t))
		u.state = next
		u.sup.rep.Transition(u.index, next, reset)
	}
	return true
}

// start builds the pipeline. Any handle left over from a timed-out
// teardown is torn down first so an index never has two live pipelines.
func (u *unit) start(ctx context.Context, t Trigger) {
	u.cancelRetry()
	if !u.teardown() {
		u.transition(TriggerFatal)
		u.scheduleRetry()
		return
	}
	u.transition(t)

	if err := u.sup.slots.acquire(ctx, int64(u.index)); err != nil {
		return
	}
	u.log.Debug("building pipeline", zap.Int64("builds_in_flight", u.sup.slots.current()))
	h, err := u.sup.eng.Build(ctx, u.pipeline)
	u.sup.slots.release(int64(u.index))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		berr := &engine.BuildError{Index: u.index, Err: err}
		u.log.Warn("build failed", zap.Error(berr))
		u.transition(TriggerBuildFailed)
		u.scheduleRetry()
		return
	}
	u.handle, u.events = h, h.Events()
	u.armWatchdog()
}

func (u *unit) handleEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventFirstMedia:
		if u.state == flow.StateStarting {
			u.transition(TriggerFirstMedia)
			u.attempt = 0
		}
		u.armWatchdog()
	case engine.EventPacketDelta:
		u.sup.rep.Add(u.index, ev.Counters)
		if u.state == flow.StatePlaying {
			u.armWatchdog()
		}
	case engine.EventSilence:
		u.fail(TriggerSilence, ev.Reason)
	case engine.EventError:
		u.fail(TriggerFatal, ev.Reason)
	}
}

func (u *unit) fail(t Trigger, reason string) {
	u.disarmWatchdog()
	u.log.Warn("flow failed", zap.Stringer("trigger", t), zap.String("reason", reason))
	u.transition(t)
	u.teardown()
	u.scheduleRetry()
}

func (u *unit) reconfigure(ctx context.Context, c command) {
	u.pipeline = c.pipeline

	if u.handle == nil || u.events == nil {
		// failed and waiting to retry: a rebuild request retries now
		if c.restart {
			u.attempt = 0
			u.start(ctx, TriggerRestart)
		}
		return
	}
	if c.restart {
		u.restart(ctx)
		return
	}

	err := u.handle.Update(c.pipeline)
	switch {
	case err == nil:
		u.log.Debug("pipeline updated live")
		if u.watchC != nil {
			u.armWatchdog()
		}
	case errors.Is(err, engine.ErrLiveUpdateUnsupported):
		u.restart(ctx)
	default:
		u.fail(TriggerFatal, "live update: "+err.Error())
	}
}

func (u *unit) restart(ctx context.Context) {
	u.disarmWatchdog()
	u.attempt = 0
	if !u.teardown() {
		u.transition(TriggerFatal)
		u.scheduleRetry()
		return
	}
	u.start(ctx, TriggerRestart)
}

// stop tears the pipeline down before the unit exits. done must not close
// while the handle may be live: the next unit of this index builds as soon
// as it does. Only supervisor shutdown abandons a stuck teardown.
func (u *unit) stop(ctx context.Context) {
	u.disarmWatchdog()
	u.cancelRetry()
	for !u.teardown() {
		if ctx.Err() != nil {
			u.log.Error("abandoning pipeline after teardown timeout")
			return
		}
		u.log.Warn("pipeline still live after teardown timeout; retrying")
	}
}

// teardown stops the current handle within the teardown timeout. It
// reports false when the pipeline may still be live; the handle is then
// kept (with its events detached) and torn down again before any build.
func (u *unit) teardown() bool {
	if u.handle == nil {
		return true
	}
	u.events = nil

	ctx, cancel := context.WithTimeout(context.Background(), u.sup.opts.TeardownTimeout)
	defer cancel()
	if err := u.handle.Teardown(ctx); err != nil {
		u.log.Warn("teardown", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return false
		}
	}
	u.handle = nil
	return true
}

func (u *unit) armWatchdog() {
	u.disarmWatchdog()
	u.watchdog = time.NewTimer(u.pipeline.Timeout)
	u.watchC = u.watchdog.C
}

func (u *unit) disarmWatchdog() {
	if u.watchdog != nil {
		u.watchdog.Stop()
	}
	u.watchdog, u.watchC = nil, nil
}

func (u *unit) scheduleRetry() {
	u.cancelRetry()
	u.attempt++
	delay := calculateBackoff(u.attempt, u.sup.opts.RetryBase, u.sup.opts.RetryMax)
	u.log.Info("retry scheduled", zap.Int("attempt", u.attempt), zap.Duration("delay", delay))
	u.retry = time.NewTimer(delay)
	u.retryC = u.retry.C
}

func (u *unit) cancelRetry() {
	if u.retry != nil {
		u.retry.Stop()
	}
	u.retry, u.retryC = nil, nil
}
