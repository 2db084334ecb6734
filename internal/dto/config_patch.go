package dto

import "github.com/edirooss/streambed-server/internal/domain/flow"

// ConfigPatch is a partial update of the global configuration. Counts are
// carried wider than their stored type so out-of-range values reach
// validation instead of wrapping.
type ConfigPatch struct {
	Acceleration W[flow.Acceleration]
	Flows        W[uint16]
	Grid         W[uint16]
}

// IsZero reports whether the patch carries no parameter.
func (p ConfigPatch) IsZero() bool {
	return !p.Acceleration.Set && !p.Flows.Set && !p.Grid.Set
}
