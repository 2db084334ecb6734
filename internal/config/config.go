// Package config loads and stores the streambed.yaml file: server
// settings plus the persisted global and per-flow configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are probed in order when no path is given.
var DefaultPaths = []string{"streambed.yaml", "/etc/streambed/streambed.yaml"}

type File struct {
	ControlAddress  string        `yaml:"control_address"  default:":7000"`
	HTTPAddress     string        `yaml:"http_address"     default:"127.0.0.1:8080"`
	RedisAddress    string        `yaml:"redis_address"`
	Dev             bool          `yaml:"dev"`
	Watch           bool          `yaml:"watch"`
	StatsInterval   time.Duration `yaml:"stats_interval"   default:"1s"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout" default:"5s"`
	BuildSlots      int           `yaml:"build_slots"      default:"8"`
	GstLaunch       string        `yaml:"gst_launch"       default:"gst-launch-1.0"`

	Acceleration flow.Acceleration `yaml:"acceleration" default:"NONE"`
	// FlowCount defaults to the length of Flows.
	FlowCount uint8             `yaml:"flow_count,omitempty"`
	Grid      uint8             `yaml:"grid"`
	Flows     []flow.FlowConfig `yaml:"flows"`
}

// New returns a File with every default applied.
func New() *File {
	f := new(File)
	defaults.SetDefaults(f)
	return f
}

// DefaultPath returns the first existing default path, or the first
// default when none exists.
func DefaultPath() string {
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultPaths[0]
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*File, error) {
	f := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	if len(f.Flows) > flow.MaxFlowCount {
		return fmt.Errorf("%d flows configured, at most %d allowed", len(f.Flows), flow.MaxFlowCount)
	}
	if f.Grid > flow.MaxGrid {
		return fmt.Errorf("grid %d is above %d", f.Grid, flow.MaxGrid)
	}
	if _, err := flow.ParseAcceleration(string(f.Acceleration)); err != nil {
		return err
	}
	for i, c := range f.Flows {
		_, e1 := flow.ParseTransport(string(c.RTSPTransport))
		_, e2 := flow.ParseEncoding(string(c.SourceEncoding))
		_, e3 := flow.ParseEncoding(string(c.SinkEncoding))
		_, e4 := flow.ParseAspectRatio(string(c.AspectRatio))
		if err := errors.Join(e1, e2, e3, e4); err != nil {
			return fmt.Errorf("flow %d: %w", i, err)
		}
	}
	return nil
}

// Global returns the global flow configuration of the file.
func (f *File) Global() flow.GlobalConfig {
	return flow.GlobalConfig{
		Acceleration: f.Acceleration,
		FlowCount:    max(f.FlowCount, uint8(len(f.Flows))),
		GridCount:    f.Grid,
	}
}

// SetFlows replaces the persisted flow configuration, trimming trailing
// inactive slots.
func (f *File) SetFlows(g flow.GlobalConfig, flows []flow.FlowConfig) {
	n := len(flows)
	for n > 0 && flows[n-1] == flow.NewFlowConfig() {
		n--
	}
	f.Acceleration = g.Acceleration
	f.FlowCount = g.FlowCount
	f.Grid = g.GridCount
	f.Flows = append([]flow.FlowConfig(nil), flows[:n]...)
}

// Flow returns flow index, growing the list with defaults as needed.
func (f *File) Flow(index int) *flow.FlowConfig {
	for len(f.Flows) <= index {
		f.Flows = append(f.Flows, flow.NewFlowConfig())
	}
	return &f.Flows[index]
}

// Save writes f to path atomically.
func (f *File) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".streambed-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
