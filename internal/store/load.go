package store

import (
	"errors"
	"fmt"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
)

// Load replaces the whole configuration. Each flow is validated as an
// update of a default slot, so an invalid field keeps its default while
// the rest of the flow loads.
func (s *Store) Load(g flow.GlobalConfig, flows []flow.FlowConfig) error {
	s.mu.Lock()
	s.global = flow.GlobalConfig{Acceleration: flow.AccelerationNone}
	for i := range s.slots {
		s.slots[i].mu.Lock()
		s.slots[i].cfg = flow.NewFlowConfig()
		s.slots[i].mu.Unlock()
	}
	s.mu.Unlock()

	var errs []error
	_, err := s.ApplyConfig(dto.ConfigPatch{
		Acceleration: dto.Val(g.Acceleration),
		Flows:        dto.Val(uint16(g.FlowCount)),
		Grid:         dto.Val(uint16(g.GridCount)),
	})
	if err != nil {
		errs = append(errs, err)
	}
	for i, cfg := range flows {
		p := dto.FullPatch(cfg)
		if _, err := s.ApplyFlow(i, &p); err != nil {
			errs = append(errs, fmt.Errorf("flow %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
