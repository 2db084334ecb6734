// Package store holds the global configuration and the per-flow
// configuration slots. Lock order is always the global lock, then a slot
// lock.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/domain/layout"
	"github.com/edirooss/streambed-server/internal/dto"
)

var ErrIndexOutOfRange = errors.New("flow index out of range")

// ConfigDelta describes the effect of a global configuration update.
type ConfigDelta struct {
	// Removed lists active flows above a reduced flow count; their
	// configuration has been reset.
	Removed             []int
	AccelerationChanged bool
	// GridChanged is set when the effective grid changed.
	GridChanged bool
	Global      flow.GlobalConfig
}

// FlowDelta describes the effect of a flow update.
type FlowDelta struct {
	Index   int
	Changed flow.FieldSet
	Config  flow.FlowConfig
}

// RequiresRestart reports whether the running pipeline must be rebuilt.
func (d FlowDelta) RequiresRestart() bool { return d.Changed.RequiresRestart() }

// LiveOnly reports whether the change can be applied to a running pipeline.
func (d FlowDelta) LiveOnly() bool { return !d.Changed.Empty() && !d.RequiresRestart() }

type slot struct {
	mu  sync.Mutex
	cfg flow.FlowConfig
}

type Store struct {
	mu     sync.RWMutex
	global flow.GlobalConfig
	slots  [flow.MaxFlows]slot
}

func New() *Store {
	s := &Store{global: flow.GlobalConfig{Acceleration: flow.AccelerationNone}}
	for i := range s.slots {
		s.slots[i].cfg = flow.NewFlowConfig()
	}
	return s
}

// ApplyConfig merges a global configuration update. Out-of-range fields
// are rejected individually; the rest is applied. A grid above the flow
// count is kept as requested and clamped where it is used, never rejected.
func (s *Store) ApplyConfig(p dto.ConfigPatch) (ConfigDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.global
	next := prev
	var errs []error

	if p.Acceleration.Set {
		next.Acceleration = p.Acceleration.V
	}
	if p.Flows.Set {
		if p.Flows.V > flow.MaxFlowCount {
			errs = append(errs, &flow.ValidationError{Field: "flows", Reason: fmt.Sprintf("%d is above %d", p.Flows.V, flow.MaxFlowCount)})
		} else {
			next.FlowCount = uint8(p.Flows.V)
		}
	}
	if p.Grid.Set {
		if p.Grid.V > flow.MaxGrid {
			errs = append(errs, &flow.ValidationError{Field: "grid", Reason: fmt.Sprintf("%d is above %d", p.Grid.V, flow.MaxGrid)})
		} else {
			next.GridCount = uint8(p.Grid.V)
		}
	}

	delta := ConfigDelta{
		AccelerationChanged: next.Acceleration != prev.Acceleration,
		GridChanged:         next.EffectiveGrid() != prev.EffectiveGrid(),
		Global:              next,
	}
	for i := int(next.FlowCount); i < int(prev.FlowCount); i++ {
		sl := &s.slots[i]
		sl.mu.Lock()
		if sl.cfg.Active() {
			delta.Removed = append(delta.Removed, i)
		}
		sl.cfg = flow.NewFlowConfig()
		sl.mu.Unlock()
	}
	s.global = next
	return delta, errors.Join(errs...)
}

// ApplyFlow merges a flow update into slot index. Fields failing
// validation keep their stored value and are reported in the returned
// error; the delta covers the fields that were applied.
func (s *Store) ApplyFlow(index int, p *dto.FlowPatch) (FlowDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= int(s.global.FlowCount) {
		return FlowDelta{Index: index}, fmt.Errorf("%w: %d (flows=%d)", ErrIndexOutOfRange, index, s.global.FlowCount)
	}

	sl := &s.slots[index]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	prev := sl.cfg
	next, err := merge(prev, p)
	sl.cfg = next

	changed := flow.Diff(prev, next)
	if next.PinnedMatrix != prev.PinnedMatrix {
		// pinning moves the flow off its default tile
		changed = changed.With(flow.FieldMatrixX)
	}
	return FlowDelta{Index: index, Changed: changed, Config: next}, err
}

func merge(prev flow.FlowConfig, p *dto.FlowPatch) (flow.FlowConfig, error) {
	present := p.Present()
	next := prev
	p.MergePatch(&next)
	next.PinnedMatrix = prev.PinnedMatrix

	var errs []error
	reject := func(f flow.Field, err error) {
		flow.Revert(&next, prev, f)
		present = present.Without(f)
		errs = append(errs, err)
	}

	if present.Has(flow.FieldLocation) {
		if err := flow.ValidateLocation(next.Location); err != nil {
			reject(flow.FieldLocation, flow.Invalid(flow.FieldLocation, "%v", err))
		}
	}
	if present.Has(flow.FieldSinkAddress) {
		if err := flow.ValidateSinkAddress(next.SinkAddress); err != nil {
			reject(flow.FieldSinkAddress, flow.Invalid(flow.FieldSinkAddress, "%v", err))
		}
	}
	for _, verr := range layout.ValidateTitleBar(next.TitleBar, present) {
		f, _ := flow.FieldByName(verr.Field)
		reject(f, verr)
	}

	if matrix := present & flow.MatrixFields; !matrix.Empty() {
		m, merrs := layout.ResolveMatrix(prev.Matrix, next.Matrix, matrix)
		next.Matrix = m
		for _, err := range merrs {
			var verr *flow.ValidationError
			if errors.As(err, &verr) {
				f, _ := flow.FieldByName(verr.Field)
				matrix = matrix.Without(f)
			}
			errs = append(errs, err)
		}
		if !matrix.Empty() {
			next.PinnedMatrix = true
		}
	}
	return next, errors.Join(errs...)
}

// Snapshot returns a copy of slot index.
func (s *Store) Snapshot(index int) (flow.FlowConfig, bool) {
	if index < 0 || index >= flow.MaxFlows {
		return flow.FlowConfig{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl := &s.slots[index]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.cfg, index < int(s.global.FlowCount)
}

// Global returns a copy of the global configuration.
func (s *Store) Global() flow.GlobalConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// Pipeline builds the engine description of flow index, including its
// effective placement. ok is false for indices outside the flow count.
func (s *Store) Pipeline(index int) (p flow.Pipeline, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= int(s.global.FlowCount) {
		return flow.Pipeline{}, false
	}
	return s.pipelineLocked(index), true
}

// Pipelines describes every active flow in index order.
func (s *Store) Pipelines() []flow.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []flow.Pipeline
	for i := 0; i < int(s.global.FlowCount); i++ {
		if p := s.pipelineLocked(i); p.Location != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) pipelineLocked(index int) flow.Pipeline {
	sl := &s.slots[index]
	sl.mu.Lock()
	cfg := sl.cfg
	sl.mu.Unlock()
	return flow.NewPipeline(index, s.global, cfg, layout.Placement(index, s.global, cfg))
}

// Export returns the global configuration and every slot within the flow
// count, in index order.
func (s *Store) Export() (flow.GlobalConfig, []flow.FlowConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]flow.FlowConfig, s.global.FlowCount)
	for i := range flows {
		sl := &s.slots[i]
		sl.mu.Lock()
		flows[i] = sl.cfg
		sl.mu.Unlock()
	}
	return s.global, flows
}
