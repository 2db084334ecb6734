// Package engine is the contract between flow supervision and a media
// engine. Engines build pipelines from a flow.Pipeline description and
// report asynchronous events on a per-handle channel.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

// ErrLiveUpdateUnsupported is returned by Handle.Update when the engine
// cannot apply a change to a running pipeline. Callers rebuild instead.
var ErrLiveUpdateUnsupported = errors.New("live update unsupported")

type EventKind int

const (
	// EventFirstMedia reports the first media buffer after build.
	EventFirstMedia EventKind = iota + 1
	// EventPacketDelta carries packet counters accumulated since the
	// previous delta.
	EventPacketDelta
	// EventError reports a fatal pipeline error.
	EventError
	// EventSilence reports that the source stopped delivering.
	EventSilence
)

func (k EventKind) String() string {
	switch k {
	case EventFirstMedia:
		return "first-media"
	case EventPacketDelta:
		return "packet-delta"
	case EventError:
		return "error"
	case EventSilence:
		return "silence"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

type Event struct {
	Kind     EventKind
	Counters flow.Counters // EventPacketDelta
	Reason   string        // EventError, EventSilence
}

// Engine builds pipelines. Build must not block beyond ctx.
type Engine interface {
	Build(ctx context.Context, p flow.Pipeline) (Handle, error)
}

// Handle is one built pipeline.
type Handle interface {
	// Events is closed once the pipeline is gone. A close that was not
	// caused by Teardown is a failure.
	Events() <-chan Event
	// Update applies a change that does not require a rebuild.
	Update(p flow.Pipeline) error
	// Teardown stops the pipeline and releases its resources. It is
	// idempotent and returns ctx.Err() if the pipeline did not stop in time.
	Teardown(ctx context.Context) error
}

// BuildError wraps a failed Build.
type BuildError struct {
	Index int
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("flow %d: build: %v", e.Index, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
