package dto

import "github.com/edirooss/streambed-server/internal/domain/flow"

// FlowPatch is a partial update of one flow's configuration. Absent
// fields leave the stored value unchanged.
type FlowPatch struct {
	Location       W[string]
	RTSPTransport  W[flow.Transport]
	SourceEncoding W[flow.Encoding]
	SinkEncoding   W[flow.Encoding]
	Sprops         W[string]
	Timeout        W[uint16]
	Latency        W[uint32]
	OverlayText    W[string]
	SinkAddress    W[string]
	SinkPort       W[uint16]
	TitleBar       W[bool]
	Accent         W[string]
	FontSize       W[uint16]
	MonitorID      W[string]
	CameraID       W[string]
	Title          W[string]
	ExtraLabel     W[string]
	AspectRatio    W[flow.AspectRatio]
	MatrixX        W[uint8]
	MatrixWidth    W[uint8]
	MatrixY        W[uint8]
	MatrixHeight   W[uint8]
	MatrixHGap     W[uint16]
	MatrixVGap     W[uint16]
}

// Present returns the set of fields carried by the patch.
func (p *FlowPatch) Present() flow.FieldSet {
	var s flow.FieldSet
	set := func(f flow.Field, ok bool) {
		if ok {
			s = s.With(f)
		}
	}
	set(flow.FieldLocation, p.Location.Set)
	set(flow.FieldRTSPTransport, p.RTSPTransport.Set)
	set(flow.FieldSourceEncoding, p.SourceEncoding.Set)
	set(flow.FieldSinkEncoding, p.SinkEncoding.Set)
	set(flow.FieldSprops, p.Sprops.Set)
	set(flow.FieldTimeout, p.Timeout.Set)
	set(flow.FieldLatency, p.Latency.Set)
	set(flow.FieldOverlayText, p.OverlayText.Set)
	set(flow.FieldSinkAddress, p.SinkAddress.Set)
	set(flow.FieldSinkPort, p.SinkPort.Set)
	set(flow.FieldTitleBar, p.TitleBar.Set)
	set(flow.FieldAccent, p.Accent.Set)
	set(flow.FieldFontSize, p.FontSize.Set)
	set(flow.FieldMonitorID, p.MonitorID.Set)
	set(flow.FieldCameraID, p.CameraID.Set)
	set(flow.FieldTitle, p.Title.Set)
	set(flow.FieldExtraLabel, p.ExtraLabel.Set)
	set(flow.FieldAspectRatio, p.AspectRatio.Set)
	set(flow.FieldMatrixX, p.MatrixX.Set)
	set(flow.FieldMatrixWidth, p.MatrixWidth.Set)
	set(flow.FieldMatrixY, p.MatrixY.Set)
	set(flow.FieldMatrixHeight, p.MatrixHeight.Set)
	set(flow.FieldMatrixHGap, p.MatrixHGap.Set)
	set(flow.FieldMatrixVGap, p.MatrixVGap.Set)
	return s
}

// MergePatch applies FlowPatch to flow.FlowConfig (in-memory).
// Unset fields remain unchanged. Values are not validated here.
func (p *FlowPatch) MergePatch(prev *flow.FlowConfig) {
	// source
	p.Location.apply(&prev.Location)
	p.RTSPTransport.apply(&prev.RTSPTransport)
	p.SourceEncoding.apply(&prev.SourceEncoding)
	p.SinkEncoding.apply(&prev.SinkEncoding)
	p.Sprops.apply(&prev.Sprops)
	p.Timeout.apply(&prev.Timeout)
	p.Latency.apply(&prev.Latency)
	p.OverlayText.apply(&prev.OverlayText)

	// sink
	p.SinkAddress.apply(&prev.SinkAddress)
	p.SinkPort.apply(&prev.SinkPort)

	// title bar
	p.TitleBar.apply(&prev.TitleBar.Visible)
	p.Accent.apply(&prev.TitleBar.Accent)
	p.FontSize.apply(&prev.TitleBar.FontSize)
	p.MonitorID.apply(&prev.TitleBar.MonitorID)
	p.CameraID.apply(&prev.TitleBar.CameraID)
	p.Title.apply(&prev.TitleBar.Title)
	p.ExtraLabel.apply(&prev.TitleBar.ExtraLabel)

	// placement
	p.AspectRatio.apply(&prev.AspectRatio)
	pinned := false
	pinned = p.MatrixX.apply(&prev.Matrix.X) || pinned
	pinned = p.MatrixWidth.apply(&prev.Matrix.Width) || pinned
	pinned = p.MatrixY.apply(&prev.Matrix.Y) || pinned
	pinned = p.MatrixHeight.apply(&prev.Matrix.Height) || pinned
	pinned = p.MatrixHGap.apply(&prev.Matrix.HGap) || pinned
	pinned = p.MatrixVGap.apply(&prev.Matrix.VGap) || pinned
	if pinned {
		prev.PinnedMatrix = true
	}
}

// FullPatch returns a patch that carries every field of c. Matrix fields
// are only carried for a pinned placement.
func FullPatch(c flow.FlowConfig) FlowPatch {
	p := FlowPatch{
		Location:       Val(c.Location),
		RTSPTransport:  Val(c.RTSPTransport),
		SourceEncoding: Val(c.SourceEncoding),
		SinkEncoding:   Val(c.SinkEncoding),
		Sprops:         Val(c.Sprops),
		Timeout:        Val(c.Timeout),
		Latency:        Val(c.Latency),
		OverlayText:    Val(c.OverlayText),
		SinkAddress:    Val(c.SinkAddress),
		SinkPort:       Val(c.SinkPort),
		TitleBar:       Val(c.TitleBar.Visible),
		Accent:         Val(c.TitleBar.Accent),
		FontSize:       Val(c.TitleBar.FontSize),
		MonitorID:      Val(c.TitleBar.MonitorID),
		CameraID:       Val(c.TitleBar.CameraID),
		Title:          Val(c.TitleBar.Title),
		ExtraLabel:     Val(c.TitleBar.ExtraLabel),
		AspectRatio:    Val(c.AspectRatio),
	}
	if c.PinnedMatrix {
		p.MatrixX = Val(c.Matrix.X)
		p.MatrixWidth = Val(c.Matrix.Width)
		p.MatrixY = Val(c.Matrix.Y)
		p.MatrixHeight = Val(c.Matrix.Height)
		p.MatrixHGap = Val(c.Matrix.HGap)
		p.MatrixVGap = Val(c.Matrix.VGap)
	}
	return p
}
