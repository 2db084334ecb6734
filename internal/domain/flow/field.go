package flow

import "strings"

// Field identifies one FlowConfig field.
type Field uint8

const (
	FieldLocation Field = iota
	FieldRTSPTransport
	FieldSourceEncoding
	FieldSinkEncoding
	FieldSprops
	FieldTimeout
	FieldLatency
	FieldOverlayText
	FieldSinkAddress
	FieldSinkPort
	FieldTitleBar
	FieldAccent
	FieldFontSize
	FieldMonitorID
	FieldCameraID
	FieldTitle
	FieldExtraLabel
	FieldAspectRatio
	FieldMatrixX
	FieldMatrixWidth
	FieldMatrixY
	FieldMatrixHeight
	FieldMatrixHGap
	FieldMatrixVGap

	fieldCount
)

type fieldInfo struct {
	wire    string
	restart bool
}

var fieldTable = [fieldCount]fieldInfo{
	FieldLocation:       {"location", true},
	FieldRTSPTransport:  {"rtsp-transport", true},
	FieldSourceEncoding: {"source-encoding", true},
	FieldSinkEncoding:   {"sink-encoding", true},
	FieldSprops:         {"sprops", true},
	FieldTimeout:        {"timeout", false},
	FieldLatency:        {"latency", true},
	FieldOverlayText:    {"overlay-text", false},
	FieldSinkAddress:    {"address", true},
	FieldSinkPort:       {"port", true},
	FieldTitleBar:       {"title-bar", false},
	FieldAccent:         {"accent", false},
	FieldFontSize:       {"font-size", false},
	FieldMonitorID:      {"monitor-id", false},
	FieldCameraID:       {"camera-id", false},
	FieldTitle:          {"title", false},
	FieldExtraLabel:     {"extra-label", false},
	FieldAspectRatio:    {"aspect-ratio", false},
	FieldMatrixX:        {"matrix-x", false},
	FieldMatrixWidth:    {"matrix-width", false},
	FieldMatrixY:        {"matrix-y", false},
	FieldMatrixHeight:   {"matrix-height", false},
	FieldMatrixHGap:     {"matrix-hgap", false},
	FieldMatrixVGap:     {"matrix-vgap", false},
}

// String returns the wire name of the field.
func (f Field) String() string {
	if f >= fieldCount {
		return "unknown"
	}
	return fieldTable[f].wire
}

// RequiresRestart reports whether a change to f cannot be applied to a
// running pipeline.
func (f Field) RequiresRestart() bool {
	return f < fieldCount && fieldTable[f].restart
}

// FieldByName resolves a wire name.
func FieldByName(name string) (Field, bool) {
	for f := Field(0); f < fieldCount; f++ {
		if fieldTable[f].wire == name {
			return f, true
		}
	}
	return 0, false
}

// Fields lists every field in wire order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// FieldSet is a set of fields.
type FieldSet uint32

// MatrixFields are the placement fields handled by the layout validator.
const MatrixFields = FieldSet(1<<FieldMatrixX | 1<<FieldMatrixWidth | 1<<FieldMatrixY |
	1<<FieldMatrixHeight | 1<<FieldMatrixHGap | 1<<FieldMatrixVGap)

func (s FieldSet) Has(f Field) bool { return s&(1<<f) != 0 }

func (s FieldSet) With(f Field) FieldSet { return s | 1<<f }

func (s FieldSet) Without(f Field) FieldSet { return s &^ (1 << f) }

func (s FieldSet) Empty() bool { return s == 0 }

// RequiresRestart reports whether any field of the set needs a pipeline rebuild.
func (s FieldSet) RequiresRestart() bool {
	for f := Field(0); f < fieldCount; f++ {
		if s.Has(f) && f.RequiresRestart() {
			return true
		}
	}
	return false
}

// List returns the fields of the set in wire order.
func (s FieldSet) List() []Field {
	var out []Field
	for f := Field(0); f < fieldCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) String() string {
	names := make([]string, 0, fieldCount)
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}
