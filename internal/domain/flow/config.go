package flow

import (
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

const (
	// MaxFlows is the number of addressable flow indices (0..MaxFlows-1).
	MaxFlows = 256
	// MaxFlowCount is the largest accepted flow_count.
	MaxFlowCount = 255
	// MaxGrid is the largest accepted grid_count.
	MaxGrid = 16

	DefaultTimeout  = 2 * time.Second
	DefaultFontSize = 14
)

// Matrix is a flow's placement on a matrix display: a tile of a
// Width x Height split, plus gaps in hundredths of a percent.
type Matrix struct {
	X      uint8  `yaml:"x"      json:"x"      default:"0"`
	Width  uint8  `yaml:"width"  json:"width"  default:"1"`
	Y      uint8  `yaml:"y"      json:"y"      default:"0"`
	Height uint8  `yaml:"height" json:"height" default:"1"`
	HGap   uint16 `yaml:"hgap"   json:"hgap"   default:"0"`
	VGap   uint16 `yaml:"vgap"   json:"vgap"   default:"0"`
}

// TitleBar is the presentation metadata drawn over a flow.
type TitleBar struct {
	Visible    bool   `yaml:"visible"     json:"visible"`
	Accent     string `yaml:"accent"      json:"accent,omitempty"`
	FontSize   uint16 `yaml:"font_size"   json:"font_size"   default:"14"`
	MonitorID  string `yaml:"monitor_id"  json:"monitor_id,omitempty"`
	CameraID   string `yaml:"camera_id"   json:"camera_id,omitempty"`
	Title      string `yaml:"title"       json:"title,omitempty"`
	ExtraLabel string `yaml:"extra_label" json:"extra_label,omitempty"`
}

// FlowConfig is the persistent configuration of one flow slot.
type FlowConfig struct {
	Location       string      `yaml:"location"        json:"location"`
	RTSPTransport  Transport   `yaml:"rtsp_transport"  json:"rtsp_transport"  default:"ANY"`
	SourceEncoding Encoding    `yaml:"source_encoding" json:"source_encoding"`
	SinkEncoding   Encoding    `yaml:"sink_encoding"   json:"sink_encoding"`
	Sprops         string      `yaml:"sprops"          json:"sprops,omitempty"`
	Timeout        uint16      `yaml:"timeout"         json:"timeout"         default:"2"`
	Latency        uint32      `yaml:"latency"         json:"latency"         default:"100"`
	OverlayText    string      `yaml:"overlay_text"    json:"overlay_text,omitempty"`
	SinkAddress    string      `yaml:"address"         json:"address"`
	SinkPort       uint16      `yaml:"port"            json:"port"`
	TitleBar       TitleBar    `yaml:"title_bar"       json:"title_bar"`
	AspectRatio    AspectRatio `yaml:"aspect_ratio"    json:"aspect_ratio"    default:"FILL"`
	Matrix         Matrix      `yaml:"matrix"          json:"matrix"`

	// PinnedMatrix is set once any matrix field was given explicitly;
	// unpinned flows follow the default grid tiling.
	PinnedMatrix bool `yaml:"pinned_matrix" json:"pinned_matrix"`
}

// NewFlowConfig returns a FlowConfig pre-filled with defaults.
func NewFlowConfig() FlowConfig {
	var c FlowConfig
	defaults.SetDefaults(&c)
	return c
}

// UnmarshalYAML fills defaults before decoding so omitted keys keep them.
func (c *FlowConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain FlowConfig
	p := plain(NewFlowConfig())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = FlowConfig(p)
	return nil
}

// Active reports whether the slot has a source to run.
func (c FlowConfig) Active() bool { return c.Location != "" }

// TimeoutDuration is the watchdog window. Zero selects DefaultTimeout.
func (c FlowConfig) TimeoutDuration() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// EffectiveSource resolves the empty source encoding to H264.
func (c FlowConfig) EffectiveSource() Encoding {
	if c.SourceEncoding == EncodingUnset {
		return EncodingH264
	}
	return c.SourceEncoding
}

// EffectiveSink resolves the empty sink encoding to the source encoding.
func (c FlowConfig) EffectiveSink() Encoding {
	if c.SinkEncoding == EncodingUnset {
		return c.EffectiveSource()
	}
	return c.SinkEncoding
}

// GlobalConfig holds the settings shared by all flows.
type GlobalConfig struct {
	Acceleration Acceleration `yaml:"acceleration" json:"acceleration" default:"NONE"`
	FlowCount    uint8        `yaml:"flows"        json:"flows"`
	GridCount    uint8        `yaml:"grid"         json:"grid"`
}

// EffectiveGrid is the grid count clamped to the flow count.
func (g GlobalConfig) EffectiveGrid() int {
	return int(min(g.GridCount, g.FlowCount))
}

// Pipeline is the declarative description of one flow handed to a media
// engine. It is a value; engines never see the store.
type Pipeline struct {
	Index          int
	Acceleration   Acceleration
	Location       string
	RTSPTransport  Transport
	SourceEncoding Encoding
	SinkEncoding   Encoding
	Sprops         string
	Timeout        time.Duration
	Latency        time.Duration
	OverlayText    string
	SinkAddress    string
	SinkPort       uint16
	TitleBar       TitleBar
	AspectRatio    AspectRatio
	Matrix         Matrix
}

// NewPipeline combines a flow's configuration with the global settings
// and its effective placement.
func NewPipeline(index int, g GlobalConfig, c FlowConfig, placement Matrix) Pipeline {
	return Pipeline{
		Index:          index,
		Acceleration:   g.Acceleration,
		Location:       c.Location,
		RTSPTransport:  c.RTSPTransport,
		SourceEncoding: c.EffectiveSource(),
		SinkEncoding:   c.EffectiveSink(),
		Sprops:         c.Sprops,
		Timeout:        c.TimeoutDuration(),
		Latency:        time.Duration(c.Latency) * time.Millisecond,
		OverlayText:    c.OverlayText,
		SinkAddress:    c.SinkAddress,
		SinkPort:       c.SinkPort,
		TitleBar:       c.TitleBar,
		AspectRatio:    c.AspectRatio,
		Matrix:         placement,
	}
}

// HasNetworkSink reports whether the pipeline emits RTP to a host.
func (p Pipeline) HasNetworkSink() bool {
	return p.SinkAddress != "" && p.SinkPort != 0
}

// Counters are packet statistics of a flow.
type Counters struct {
	Pushed uint64 `json:"pushed"`
	Lost   uint64 `json:"lost"`
	Late   uint64 `json:"late"`
}

// Add returns the element-wise sum.
func (c Counters) Add(d Counters) Counters {
	return Counters{Pushed: c.Pushed + d.Pushed, Lost: c.Lost + d.Lost, Late: c.Late + d.Late}
}

// IsZero reports whether no packet was counted.
func (c Counters) IsZero() bool { return c == Counters{} }

// Status is a snapshot of one flow's runtime state.
type Status struct {
	Index int   `json:"number"`
	State State `json:"state"`
	Counters
}
