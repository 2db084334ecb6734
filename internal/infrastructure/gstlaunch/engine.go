//go:build linux

// Package gstlaunch runs each flow pipeline as a supervised gst-launch
// child process and turns its verbose output into engine events.
package gstlaunch

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/engine"
	"github.com/edirooss/streambed-server/internal/infrastructure/logring"
	"github.com/edirooss/streambed-server/pkg/avurl"
	"github.com/edirooss/streambed-server/pkg/gstcmd"
)

// DefaultFlushInterval batches packet deltas.
const DefaultFlushInterval = 500 * time.Millisecond

type Options struct {
	Binary        string // gstcmd.DefaultBinary when empty
	UserAgent     string
	FlushInterval time.Duration
}

// Engine builds gst-launch processes. It implements engine.Engine.
type Engine struct {
	log  *zap.Logger
	logs *logring.Manager
	opts Options
	env  []string
}

func New(log *zap.Logger, logs *logring.Manager, opts Options) *Engine {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return &Engine{
		log:  log.Named("gstlaunch"),
		logs: logs,
		opts: opts,
		env:  append(os.Environ(), "GST_DEBUG_NO_COLOR=1"),
	}
}

// Build starts gst-launch for p. The returned handle reports events until
// the process is gone.
func (e *Engine) Build(ctx context.Context, p flow.Pipeline) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := gstcmd.FromPipeline(p, gstcmd.Options{Binary: e.opts.Binary, UserAgent: e.opts.UserAgent})
	if err != nil {
		return nil, err
	}

	log := e.log.With(zap.Int("flow", p.Index))
	ring := e.logs.Get(p.Index)
	h := &handle{
		log:    log,
		ring:   ring,
		redact: redactor(p.Location),
		flush:  e.opts.FlushInterval,
		events: make(chan engine.Event, 16),
		notes:  make(chan engine.Event, 16),
		quit:   make(chan struct{}),
	}
	h.append("$ " + b.BuildString())

	proc, err := newProcess(log, e.env, b.BuildArgv(), h.onLine)
	if err != nil {
		return nil, err
	}
	h.proc = proc
	if err := proc.Start(); err != nil {
		h.append(err.Error())
		return nil, err
	}
	go h.run()
	return h, nil
}

// handle is one running gst-launch process.
type handle struct {
	log    *zap.Logger
	ring   *logring.Ring
	redact func(string) string
	proc   *process
	flush  time.Duration

	// events is owned by run; notes carries reader observations to it.
	events chan engine.Event
	notes  chan engine.Event

	pushed atomic.Uint64
	lost   atomic.Uint64
	late   atomic.Uint64
	first  atomic.Bool

	quit     chan struct{}
	quitOnce sync.Once
}

func (h *handle) Events() <-chan engine.Event { return h.events }

func (h *handle) Update(flow.Pipeline) error { return engine.ErrLiveUpdateUnsupported }

// Teardown stops the process group and waits for it to be reaped.
func (h *handle) Teardown(ctx context.Context) error {
	h.quitOnce.Do(func() {
		close(h.quit)
		h.proc.Close()
	})
	select {
	case <-h.proc.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onLine runs on the pipe reader goroutines.
func (h *handle) onLine(line string) {
	kind, reason := classify(line)
	if kind != lineBuffer {
		h.append(line)
	}
	switch kind {
	case lineBuffer:
		if h.first.CompareAndSwap(false, true) {
			h.append(line)
			h.note(engine.Event{Kind: engine.EventFirstMedia})
		}
		h.pushed.Add(1)
	case lineDrop:
		c := dropCounters(line)
		h.lost.Add(c.Lost)
		h.late.Add(c.Late)
	case lineError:
		h.note(engine.Event{Kind: engine.EventError, Reason: h.redact(reason)})
	case lineSilence:
		h.note(engine.Event{Kind: engine.EventSilence, Reason: reason})
	}
}

// append adds a line to the flow's log ring with source credentials masked.
func (h *handle) append(line string) {
	h.ring.Append(h.redact(line))
}

// redactor masks the password of location wherever it appears verbatim.
func redactor(location string) func(string) string {
	masked := avurl.Redact(location)
	if masked == location {
		return func(s string) string { return s }
	}
	return func(s string) string { return strings.ReplaceAll(s, location, masked) }
}

func (h *handle) note(ev engine.Event) {
	select {
	case h.notes <- ev:
	case <-h.quit:
	}
}

func (h *handle) emit(ev engine.Event) {
	select {
	case h.events <- ev:
	case <-h.quit:
	}
}

// run forwards reader observations and batches packet counts until the
// process is reaped. Exit without Teardown is reported as an error.
func (h *handle) run() {
	defer close(h.events)
	t := time.NewTicker(h.flush)
	defer t.Stop()

	started := false
	forward := func(ev engine.Event) {
		if ev.Kind == engine.EventFirstMedia {
			started = true
		}
		h.emit(ev)
	}
	flushDelta := func() {
		if !started {
			return
		}
		c := flow.Counters{
			Pushed: h.pushed.Swap(0),
			Lost:   h.lost.Swap(0),
			Late:   h.late.Swap(0),
		}
		if !c.IsZero() {
			h.emit(engine.Event{Kind: engine.EventPacketDelta, Counters: c})
		}
	}

	for {
		select {
		case ev := <-h.notes:
			forward(ev)
		case <-t.C:
			flushDelta()
		case <-h.proc.Done():
			for drained := false; !drained; {
				select {
				case ev := <-h.notes:
					forward(ev)
				default:
					drained = true
				}
			}
			flushDelta()
			select {
			case <-h.quit:
			default:
				reason := h.proc.ExitErr().Error()
				h.append(reason)
				h.log.Warn("pipeline exited", zap.String("reason", reason))
				h.emit(engine.Event{Kind: engine.EventError, Reason: reason})
			}
			return
		}
	}
}
