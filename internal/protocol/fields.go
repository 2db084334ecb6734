package protocol

import (
	"fmt"
	"strconv"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
)

// codec maps one wire parameter onto a field of patch type P.
type codec[P any] struct {
	name   string
	decode func(p *P, v string) error
	encode func(p *P) (string, bool)
}

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func stringField[P any](name string, get func(*P) *dto.W[string]) codec[P] {
	return codec[P]{
		name: name,
		decode: func(p *P, v string) error {
			w := get(p)
			*w = dto.Val(v)
			w.Empty = v == ""
			return nil
		},
		encode: func(p *P) (string, bool) {
			w := get(p)
			return w.V, w.Set
		},
	}
}

func uintField[P any, T unsigned](name string, bits int, get func(*P) *dto.W[T]) codec[P] {
	return codec[P]{
		name: name,
		decode: func(p *P, v string) error {
			if v == "" {
				*get(p) = dto.Reset(T(0))
				return nil
			}
			n, err := strconv.ParseUint(v, 10, bits)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*get(p) = dto.Val(T(n))
			return nil
		},
		encode: func(p *P) (string, bool) {
			w := get(p)
			if w.Empty {
				return "", w.Set
			}
			return strconv.FormatUint(uint64(w.V), 10), w.Set
		},
	}
}

// enumField decodes through parse, which maps "" to the enum's reset value.
func enumField[P any, T ~string](name string, parse func(string) (T, error), get func(*P) *dto.W[T]) codec[P] {
	return codec[P]{
		name: name,
		decode: func(p *P, v string) error {
			e, err := parse(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if v == "" {
				*get(p) = dto.Reset(e)
			} else {
				*get(p) = dto.Val(e)
			}
			return nil
		},
		encode: func(p *P) (string, bool) {
			w := get(p)
			if w.Empty {
				return "", w.Set
			}
			return string(w.V), w.Set
		},
	}
}

func boolField[P any](name string, get func(*P) *dto.W[bool]) codec[P] {
	return codec[P]{
		name: name,
		decode: func(p *P, v string) error {
			switch v {
			case "":
				*get(p) = dto.Reset(false)
			case "1", "true":
				*get(p) = dto.Val(true)
			case "0", "false":
				*get(p) = dto.Val(false)
			default:
				return fmt.Errorf("%s: invalid boolean %q", name, v)
			}
			return nil
		},
		encode: func(p *P) (string, bool) {
			w := get(p)
			switch {
			case w.Empty:
				return "", w.Set
			case w.V:
				return "1", w.Set
			}
			return "0", w.Set
		},
	}
}

var configCodecs = []codec[dto.ConfigPatch]{
	enumField(ParamAcceleration, flow.ParseAcceleration, func(p *dto.ConfigPatch) *dto.W[flow.Acceleration] { return &p.Acceleration }),
	uintField(ParamFlows, 16, func(p *dto.ConfigPatch) *dto.W[uint16] { return &p.Flows }),
	uintField(ParamGrid, 16, func(p *dto.ConfigPatch) *dto.W[uint16] { return &p.Grid }),
}

type flowPatch = dto.FlowPatch

// flowCodecs is indexed by flow.Field and encodes in that order.
var flowCodecs = []codec[flowPatch]{
	flow.FieldLocation:       stringField(flow.FieldLocation.String(), func(p *flowPatch) *dto.W[string] { return &p.Location }),
	flow.FieldRTSPTransport:  enumField(flow.FieldRTSPTransport.String(), flow.ParseTransport, func(p *flowPatch) *dto.W[flow.Transport] { return &p.RTSPTransport }),
	flow.FieldSourceEncoding: enumField(flow.FieldSourceEncoding.String(), flow.ParseEncoding, func(p *flowPatch) *dto.W[flow.Encoding] { return &p.SourceEncoding }),
	flow.FieldSinkEncoding:   enumField(flow.FieldSinkEncoding.String(), flow.ParseEncoding, func(p *flowPatch) *dto.W[flow.Encoding] { return &p.SinkEncoding }),
	flow.FieldSprops:         stringField(flow.FieldSprops.String(), func(p *flowPatch) *dto.W[string] { return &p.Sprops }),
	flow.FieldTimeout:        uintField(flow.FieldTimeout.String(), 16, func(p *flowPatch) *dto.W[uint16] { return &p.Timeout }),
	flow.FieldLatency:        uintField(flow.FieldLatency.String(), 32, func(p *flowPatch) *dto.W[uint32] { return &p.Latency }),
	flow.FieldOverlayText:    stringField(flow.FieldOverlayText.String(), func(p *flowPatch) *dto.W[string] { return &p.OverlayText }),
	flow.FieldSinkAddress:    stringField(flow.FieldSinkAddress.String(), func(p *flowPatch) *dto.W[string] { return &p.SinkAddress }),
	flow.FieldSinkPort:       uintField(flow.FieldSinkPort.String(), 16, func(p *flowPatch) *dto.W[uint16] { return &p.SinkPort }),
	flow.FieldTitleBar:       boolField(flow.FieldTitleBar.String(), func(p *flowPatch) *dto.W[bool] { return &p.TitleBar }),
	flow.FieldAccent:         stringField(flow.FieldAccent.String(), func(p *flowPatch) *dto.W[string] { return &p.Accent }),
	flow.FieldFontSize:       uintField(flow.FieldFontSize.String(), 16, func(p *flowPatch) *dto.W[uint16] { return &p.FontSize }),
	flow.FieldMonitorID:      stringField(flow.FieldMonitorID.String(), func(p *flowPatch) *dto.W[string] { return &p.MonitorID }),
	flow.FieldCameraID:       stringField(flow.FieldCameraID.String(), func(p *flowPatch) *dto.W[string] { return &p.CameraID }),
	flow.FieldTitle:          stringField(flow.FieldTitle.String(), func(p *flowPatch) *dto.W[string] { return &p.Title }),
	flow.FieldExtraLabel:     stringField(flow.FieldExtraLabel.String(), func(p *flowPatch) *dto.W[string] { return &p.ExtraLabel }),
	flow.FieldAspectRatio:    enumField(flow.FieldAspectRatio.String(), flow.ParseAspectRatio, func(p *flowPatch) *dto.W[flow.AspectRatio] { return &p.AspectRatio }),
	flow.FieldMatrixX:        uintField(flow.FieldMatrixX.String(), 8, func(p *flowPatch) *dto.W[uint8] { return &p.MatrixX }),
	flow.FieldMatrixWidth:    uintField(flow.FieldMatrixWidth.String(), 8, func(p *flowPatch) *dto.W[uint8] { return &p.MatrixWidth }),
	flow.FieldMatrixY:        uintField(flow.FieldMatrixY.String(), 8, func(p *flowPatch) *dto.W[uint8] { return &p.MatrixY }),
	flow.FieldMatrixHeight:   uintField(flow.FieldMatrixHeight.String(), 8, func(p *flowPatch) *dto.W[uint8] { return &p.MatrixHeight }),
	flow.FieldMatrixHGap:     uintField(flow.FieldMatrixHGap.String(), 16, func(p *flowPatch) *dto.W[uint16] { return &p.MatrixHGap }),
	flow.FieldMatrixVGap:     uintField(flow.FieldMatrixVGap.String(), 16, func(p *flowPatch) *dto.W[uint16] { return &p.MatrixVGap }),
}

var (
	configByName = indexCodecs(configCodecs)
	flowByName   = indexCodecs(flowCodecs)
)

func indexCodecs[P any](cs []codec[P]) map[string]codec[P] {
	m := make(map[string]codec[P], len(cs))
	for _, c := range cs {
		m[c.name] = c
	}
	return m
}
