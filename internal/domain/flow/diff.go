package flow

// Diff returns the fields whose values differ between a and b.
func Diff(a, b FlowConfig) FieldSet {
	var s FieldSet
	for f := Field(0); f < fieldCount; f++ {
		if !equalField(a, b, f) {
			s = s.With(f)
		}
	}
	return s
}

// Revert copies field f from src into dst.
func Revert(dst *FlowConfig, src FlowConfig, f Field) {
	switch f {
	case FieldLocation:
		dst.Location = src.Location
	case FieldRTSPTransport:
		dst.RTSPTransport = src.RTSPTransport
	case FieldSourceEncoding:
		dst.SourceEncoding = src.SourceEncoding
	case FieldSinkEncoding:
		dst.SinkEncoding = src.SinkEncoding
	case FieldSprops:
		dst.Sprops = src.Sprops
	case FieldTimeout:
		dst.Timeout = src.Timeout
	case FieldLatency:
		dst.Latency = src.Latency
	case FieldOverlayText:
		dst.OverlayText = src.OverlayText
	case FieldSinkAddress:
		dst.SinkAddress = src.SinkAddress
	case FieldSinkPort:
		dst.SinkPort = src.SinkPort
	case FieldTitleBar:
		dst.TitleBar.Visible = src.TitleBar.Visible
	case FieldAccent:
		dst.TitleBar.Accent = src.TitleBar.Accent
	case FieldFontSize:
		dst.TitleBar.FontSize = src.TitleBar.FontSize
	case FieldMonitorID:
		dst.TitleBar.MonitorID = src.TitleBar.MonitorID
	case FieldCameraID:
		dst.TitleBar.CameraID = src.TitleBar.CameraID
	case FieldTitle:
		dst.TitleBar.Title = src.TitleBar.Title
	case FieldExtraLabel:
		dst.TitleBar.ExtraLabel = src.TitleBar.ExtraLabel
	case FieldAspectRatio:
		dst.AspectRatio = src.AspectRatio
	case FieldMatrixX:
		dst.Matrix.X = src.Matrix.X
	case FieldMatrixWidth:
		dst.Matrix.Width = src.Matrix.Width
	case FieldMatrixY:
		dst.Matrix.Y = src.Matrix.Y
	case FieldMatrixHeight:
		dst.Matrix.Height = src.Matrix.Height
	case FieldMatrixHGap:
		dst.Matrix.HGap = src.Matrix.HGap
	case FieldMatrixVGap:
		dst.Matrix.VGap = src.Matrix.VGap
	}
}

func equalField(a, b FlowConfig, f Field) bool {
	c := a
	Revert(&c, b, f)
	return c == a
}
