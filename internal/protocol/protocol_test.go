package protocol

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds a wire frame from readable separators: '|' for RS, '=' for
// US and a trailing GS.
func frame(s string) []byte {
	r := strings.NewReplacer("|", string(ParamSep), "=", string(FieldSep))
	return append([]byte(r.Replace(s)), Terminator)
}

func TestDecodeConfig(t *testing.T) {
	m, err := Decode(frame("config|acceleration=VAAPI|flows=4|grid=4"))
	require.NoError(t, err)

	cm, ok := m.(*ConfigMessage)
	require.True(t, ok)
	assert.Equal(t, dto.Val(flow.AccelerationVAAPI), cm.Patch.Acceleration)
	assert.Equal(t, dto.Val(uint16(4)), cm.Patch.Flows)
	assert.Equal(t, dto.Val(uint16(4)), cm.Patch.Grid)
	assert.Empty(t, cm.Unknown)
}

func TestDecodeConfigKeepsOutOfRangeCounts(t *testing.T) {
	m, err := Decode(frame("config|flows=256"))
	require.NoError(t, err)
	assert.Equal(t, uint16(256), m.(*ConfigMessage).Patch.Flows.V)
}

func TestDecodeFlow(t *testing.T) {
	m, err := Decode(frame("flow|number=3|location=rtsp://cam/1|title-bar=1|matrix-width=2|overlay-text="))
	require.NoError(t, err)

	fm := m.(*FlowMessage)
	assert.Equal(t, uint8(3), fm.Number)
	assert.Equal(t, dto.Val("rtsp://cam/1"), fm.Patch.Location)
	assert.Equal(t, dto.Val(true), fm.Patch.TitleBar)
	assert.Equal(t, dto.Val(uint8(2)), fm.Patch.MatrixWidth)
	assert.Equal(t, dto.Reset(""), fm.Patch.OverlayText)
	assert.False(t, fm.Patch.Latency.Set)

	want := flow.FieldSet(0).With(flow.FieldLocation).With(flow.FieldTitleBar).
		With(flow.FieldMatrixWidth).With(flow.FieldOverlayText)
	assert.Equal(t, want, fm.Patch.Present())
}

func TestDecodeEmptyValuesReset(t *testing.T) {
	m, err := Decode(frame("flow|number=0|rtsp-transport=|aspect-ratio=|latency=|source-encoding=|title-bar="))
	require.NoError(t, err)

	p := m.(*FlowMessage).Patch
	assert.Equal(t, dto.Reset(flow.TransportAny), p.RTSPTransport)
	assert.Equal(t, dto.Reset(flow.AspectFill), p.AspectRatio)
	assert.Equal(t, dto.Reset(uint32(0)), p.Latency)
	assert.Equal(t, dto.Reset(flow.EncodingUnset), p.SourceEncoding)
	assert.Equal(t, dto.Reset(false), p.TitleBar)
}

func TestDecodeUnknownParameters(t *testing.T) {
	m, err := Decode(frame("flow|number=1|title-accent=ff0000|location=udp://239.0.0.1:5000"))
	require.NoError(t, err)

	fm := m.(*FlowMessage)
	assert.Equal(t, []string{"title-accent"}, fm.Unknown)
	assert.True(t, fm.Patch.Location.Set)
}

func TestDecodeDuplicateLastWins(t *testing.T) {
	m, err := Decode(frame("flow|number=1|latency=100|latency=300"))
	require.NoError(t, err)
	assert.Equal(t, uint32(300), m.(*FlowMessage).Patch.Latency.V)
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string][]byte{
		"no terminator":       []byte("config"),
		"empty":               {},
		"unknown command":     frame("reboot"),
		"missing command":     frame("|flows=1"),
		"missing number":      frame("flow|location=rtsp://cam/1"),
		"number too large":    frame("flow|number=256"),
		"number negative":     frame("flow|number=-1"),
		"number empty":        frame("flow|number="),
		"no field separator":  frame("flow|number=1|latency"),
		"two separators":      frame("flow|number=1|latency=1=2"),
		"bad uint":            frame("flow|number=1|latency=fast"),
		"uint overflow":       frame("flow|number=1|matrix-x=300"),
		"bad enum":            frame("config|acceleration=CUDA"),
		"bad bool":            frame("flow|number=1|title-bar=yes"),
		"status without late": frame("status|number=1|state=PLAYING|pushed=1|lost=0"),
		"status bad state":    frame("status|number=1|state=STOPPED|pushed=1|lost=0|late=0"),
		"embedded terminator": append(frame("config"), frame("flow|number=1")...),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestEncodeAck(t *testing.T) {
	assert.Equal(t, frame("config"), Encode(&Ack{Cmd: CmdConfig}))
	assert.Equal(t, frame("flow"), Encode(AckFor(&FlowMessage{})))
}

func TestStatusRoundTrip(t *testing.T) {
	for _, st := range []flow.State{flow.StateStarting, flow.StatePlaying, flow.StateFailed} {
		in := &StatusMessage{flow.Status{
			Index:    255,
			State:    st,
			Counters: flow.Counters{Pushed: 1 << 40, Lost: 7, Late: 0},
		}}
		b := Encode(in)
		out, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
	assert.Equal(t, frame("status|number=2|state=PLAYING|pushed=10|lost=1|late=0"),
		Encode(&StatusMessage{flow.Status{Index: 2, State: flow.StatePlaying, Counters: flow.Counters{Pushed: 10, Lost: 1}}}))
}

func TestFlowRoundTrip(t *testing.T) {
	in := &FlowMessage{
		Number: 9,
		Patch: dto.FlowPatch{
			Location:     dto.Val("rtsp://cam/9"),
			SinkEncoding: dto.Val(flow.EncodingVP8),
			OverlayText:  dto.Reset(""),
			SinkPort:     dto.Val(uint16(5004)),
			TitleBar:     dto.Val(true),
			FontSize:     dto.Reset(uint16(0)),
			AspectRatio:  dto.Val(flow.AspectPreserve),
			MatrixVGap:   dto.Val(uint16(150)),
		},
	}
	out, err := Decode(Encode(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestConfigRoundTrip(t *testing.T) {
	in := &ConfigMessage{Patch: dto.ConfigPatch{
		Acceleration: dto.Reset(flow.AccelerationNone),
		Grid:         dto.Val(uint16(16)),
	}}
	b := Encode(in)
	assert.Equal(t, frame("config|acceleration=|grid=16"), b)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadFrame(t *testing.T) {
	in := string(frame("config|flows=1")) + string(frame("flow|number=0")) + "flow"
	r := bufio.NewReaderSize(strings.NewReader(in), 16)

	f, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame("config|flows=1"), f)

	f, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame("flow|number=0"), f)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bufio.NewReader(strings.NewReader("")))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	big := "flow|number=0|overlay-text=" + strings.Repeat("x", MaxFrameSize)
	in := string(frame(big)) + string(frame("config"))
	r := bufio.NewReader(strings.NewReader(in))

	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	f, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame("config"), f)
}

func TestDecodeParamByName(t *testing.T) {
	assert.Equal(t, []string{"acceleration", "flows", "grid"}, ConfigParams())
	assert.Equal(t, "location", FlowParams()[0])
	assert.Contains(t, FlowParams(), "matrix-vgap")
	assert.NotContains(t, FlowParams(), ParamNumber)

	var cp dto.ConfigPatch
	require.NoError(t, DecodeConfigParam(&cp, ParamFlows, "4"))
	assert.Equal(t, dto.Val(uint16(4)), cp.Flows)
	assert.Error(t, DecodeConfigParam(&cp, "bogus", "1"))

	var fp dto.FlowPatch
	require.NoError(t, DecodeFlowParam(&fp, "port", "5004"))
	require.NoError(t, DecodeFlowParam(&fp, "overlay-text", ""))
	assert.Equal(t, dto.Val(uint16(5004)), fp.SinkPort)
	assert.True(t, fp.OverlayText.Empty)
	assert.Error(t, DecodeFlowParam(&fp, "latency", "soon"))
	assert.Error(t, DecodeFlowParam(&fp, ParamNumber, "1"))
}
