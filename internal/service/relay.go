package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edirooss/streambed-server/internal/config"
	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
	"github.com/edirooss/streambed-server/internal/protocol"
	"github.com/edirooss/streambed-server/internal/store"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// RelayService
// -----------------------------------------------------------------------------
//
// Runtime model
//   • The store is the source of truth; the supervisor follows it.
//   • Updates are serialized: one config or flow message at a time, whether it
//     came from the control session or from a config file reload.
//
// Reconciliation
//   • flows shrunk       → removed flows are stopped.
//   • acceleration       → every active flow is rebuilt.
//   • effective grid     → flows on their default tile get a live update.
//   • flow update        → rebuilt when a restart field changed, otherwise
//                          updated live; an empty location stops the flow.
//   • Rejected fields never reach the supervisor; accepted ones always do.

// Supervisor runs the pipelines described by the store.
type Supervisor interface {
	Apply(p flow.Pipeline, restart bool)
	Remove(index int)
}

// Persister stores the configuration after a change.
type Persister interface {
	Persist(g flow.GlobalConfig, flows []flow.FlowConfig) error
}

type RelayService struct {
	log   *zap.Logger
	store *store.Store
	sup   Supervisor
	pers  Persister

	mu sync.Mutex
}

// NewRelayService wires store and supervisor. pers may be nil.
func NewRelayService(log *zap.Logger, st *store.Store, sup Supervisor, pers Persister) *RelayService {
	return &RelayService{
		log:   log.Named("relay"),
		store: st,
		sup:   sup,
		pers:  pers,
	}
}

// Dispatch applies a decoded control message. The returned error lists
// rejected fields or an out-of-range flow; accepted fields are applied
// regardless.
func (s *RelayService) Dispatch(_ context.Context, m protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		changed bool
		err     error
	)
	switch m := m.(type) {
	case *protocol.ConfigMessage:
		prev := s.store.Global()
		err = s.applyConfig(m.Patch)
		changed = s.store.Global() != prev
	case *protocol.FlowMessage:
		changed, err = s.applyFlow(int(m.Number), &m.Patch)
	default:
		return fmt.Errorf("unsupported command %q", m.Command())
	}
	if changed {
		s.persist()
	}
	return err
}

func (s *RelayService) applyConfig(p dto.ConfigPatch) error {
	delta, err := s.store.ApplyConfig(p)
	for _, i := range delta.Removed {
		s.log.Info("flow removed", zap.Int("flow", i))
		s.sup.Remove(i)
	}

	switch {
	case delta.AccelerationChanged:
		s.log.Info("acceleration changed", zap.String("acceleration", string(delta.Global.Acceleration)))
		for _, pl := range s.store.Pipelines() {
			s.sup.Apply(pl, true)
		}
	case delta.GridChanged:
		s.log.Info("grid changed", zap.Int("grid", delta.Global.EffectiveGrid()))
		for _, pl := range s.store.Pipelines() {
			if cfg, _ := s.store.Snapshot(pl.Index); !cfg.PinnedMatrix {
				s.sup.Apply(pl, false)
			}
		}
	}
	return err
}

// applyFlow reports whether any stored field changed.
func (s *RelayService) applyFlow(index int, p *dto.FlowPatch) (bool, error) {
	delta, err := s.store.ApplyFlow(index, p)
	if errors.Is(err, store.ErrIndexOutOfRange) || delta.Changed.Empty() {
		return false, err
	}

	pl, ok := s.store.Pipeline(index)
	if !ok {
		return true, err
	}
	s.log.Debug("flow changed",
		zap.Int("flow", index),
		zap.Stringer("fields", delta.Changed),
		zap.Bool("restart", delta.RequiresRestart()),
	)
	s.sup.Apply(pl, delta.RequiresRestart())
	return true, err
}

// Bootstrap starts every configured flow.
func (s *RelayService) Bootstrap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	pls := s.store.Pipelines()
	for _, pl := range pls {
		s.sup.Apply(pl, true)
	}
	s.log.Info("flows started", zap.Int("count", len(pls)))
}

// Reload applies a whole configuration through the same path as control
// messages, so only the fields that differ reach the supervisor. Flows
// missing from flows are reset.
func (s *RelayService) Reload(g flow.GlobalConfig, flows []flow.FlowConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(g, flows)
}

// ReloadFile loads path and applies it as Reload does. The file is read
// under the dispatch lock, so a control message persisted in the meantime
// is never rolled back by older file contents. Rejected fields are logged;
// only a load failure is returned.
func (s *RelayService) ReloadFile(path string) (flow.GlobalConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := config.Load(path)
	if err != nil {
		return flow.GlobalConfig{}, fmt.Errorf("load config: %w", err)
	}
	g := f.Global()
	if err := s.reload(g, f.Flows); err != nil {
		s.log.Warn("config applied with rejected fields", zap.Error(err))
	}
	return g, nil
}

func (s *RelayService) reload(g flow.GlobalConfig, flows []flow.FlowConfig) error {
	errs := []error{s.applyConfig(dto.ConfigPatch{
		Acceleration: dto.Val(g.Acceleration),
		Flows:        dto.Val(uint16(g.FlowCount)),
		Grid:         dto.Val(uint16(g.GridCount)),
	})}
	for i := 0; i < int(g.FlowCount); i++ {
		cfg := flow.NewFlowConfig()
		if i < len(flows) {
			cfg = flows[i]
		}
		p := dto.FullPatch(cfg)
		if _, err := s.applyFlow(i, &p); err != nil {
			errs = append(errs, fmt.Errorf("flow %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s *RelayService) persist() {
	if s.pers == nil {
		return
	}
	g, flows := s.store.Export()
	if err := s.pers.Persist(g, flows); err != nil {
		s.log.Warn("configuration not persisted", zap.Error(err))
	}
}
