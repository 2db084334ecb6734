package supervisor

import (
	"fmt"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

// Trigger drives the flow state machine.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerFirstMedia
	TriggerBuildFailed
	TriggerFatal
	TriggerSilence
	TriggerTimeout
	TriggerRetry
	TriggerRestart
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerFirstMedia:
		return "first-media"
	case TriggerBuildFailed:
		return "build-failed"
	case TriggerFatal:
		return "fatal"
	case TriggerSilence:
		return "silence"
	case TriggerTimeout:
		return "timeout"
	case TriggerRetry:
		return "retry"
	case TriggerRestart:
		return "restart"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Next is the flow state transition function. ok is false when the
// trigger does not apply in state s; the state is then unchanged.
//
//	none     --start-->                          STARTING
//	STARTING --first-media-->                    PLAYING
//	STARTING --build-failed|fatal|silence|timeout--> FAILED
//	PLAYING  --fatal|silence|timeout-->          FAILED
//	FAILED   --retry-->                          STARTING
//	any      --restart-->                        STARTING
func Next(s flow.State, t Trigger) (flow.State, bool) {
	if t == TriggerRestart {
		return flow.StateStarting, true
	}
	switch s {
	case flow.StateNone:
		if t == TriggerStart {
			return flow.StateStarting, true
		}
	case flow.StateStarting:
		switch t {
		case TriggerFirstMedia:
			return flow.StatePlaying, true
		case TriggerBuildFailed, TriggerFatal, TriggerSilence, TriggerTimeout:
			return flow.StateFailed, true
		}
	case flow.StatePlaying:
		switch t {
		case TriggerFatal, TriggerSilence, TriggerTimeout:
			return flow.StateFailed, true
		}
	case flow.StateFailed:
		if t == TriggerRetry {
			return flow.StateStarting, true
		}
	}
	return s, false
}
