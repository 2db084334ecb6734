package gstcmd

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

func basePipeline() flow.Pipeline {
	return flow.Pipeline{
		Index:        0,
		Acceleration: flow.AccelerationNone,
		Timeout:      2 * time.Second,
		Latency:      100 * time.Millisecond,
		AspectRatio:  flow.AspectFill,
		Matrix:       flow.Matrix{Width: 1, Height: 1},
	}
}

func TestFromPipelineGolden(t *testing.T) {
	rtp := basePipeline()
	rtp.Location = "udp://239.1.1.1:5000"
	rtp.SourceEncoding = flow.EncodingH264
	rtp.SinkEncoding = flow.EncodingH264
	rtp.Sprops = "Z0IAKeKQFAe2AtwEBAaQeJEV,aM48gA=="
	rtp.SinkAddress = "10.0.0.9"
	rtp.SinkPort = 5004

	rtsp := basePipeline()
	rtsp.Acceleration = flow.AccelerationVAAPI
	rtsp.Location = "rtsp://10.0.0.5/stream1"
	rtsp.RTSPTransport = flow.TransportTCP
	rtsp.SourceEncoding = flow.EncodingH264
	rtsp.SinkEncoding = flow.EncodingH265
	rtsp.OverlayText = "Lane 2 closed"
	rtsp.SinkAddress = "10.0.0.9"
	rtsp.SinkPort = 5006

	tile := basePipeline()
	tile.Location = "test://"
	tile.SourceEncoding = flow.EncodingH264
	tile.SinkEncoding = flow.EncodingH264
	tile.AspectRatio = flow.AspectPreserve
	tile.Matrix = flow.Matrix{X: 1, Width: 2, Y: 1, Height: 2}
	tile.TitleBar = flow.TitleBar{Visible: true, Accent: "00ff7f", FontSize: 20, MonitorID: "M4", Title: "North gate"}

	http := basePipeline()
	http.Location = "http://10.1.1.5/snapshot.mjpg"
	http.SourceEncoding = flow.EncodingMJPEG
	http.SinkEncoding = flow.EncodingH264
	http.SinkAddress = "10.0.0.9"
	http.SinkPort = 5008

	tests := []struct {
		name string
		p    flow.Pipeline
	}{
		{"rtp_h264_relay", rtp},
		{"rtsp_vaapi_transcode_overlay", rtsp},
		{"test_tile_title_bar", tile},
		{"http_mjpeg_to_h264", http},
	}

	g := goldie.New(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			argv, err := BuildArgv(tc.p, Options{UserAgent: "streambed/1.2.3"})
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(strings.Join(argv, "\n")+"\n"))
		})
	}
}

func TestFromPipelineErrors(t *testing.T) {
	p := basePipeline()
	_, err := FromPipeline(p, Options{})
	assert.ErrorIs(t, err, ErrNoSource)

	p.Location = "http://10.1.1.5/live"
	p.SourceEncoding = flow.EncodingH264
	_, err = FromPipeline(p, Options{})
	assert.ErrorContains(t, err, "invalid encoding for HTTP")

	p.Location = "udp://239.1.1.1:5000"
	p.SourceEncoding = flow.EncodingPNG
	_, err = FromPipeline(p, Options{})
	assert.ErrorContains(t, err, "no RTP depayloader for PNG")

	p.SourceEncoding = flow.EncodingH264
	p.SinkEncoding = flow.EncodingAV1
	p.SinkAddress, p.SinkPort = "10.0.0.9", 5004
	_, err = FromPipeline(p, Options{})
	assert.ErrorContains(t, err, "no RTP payloader for AV1")
}

func TestFakeSinkDecodesSource(t *testing.T) {
	p := basePipeline()
	p.Location = "rtsp://10.0.0.5/stream1"
	p.SourceEncoding = flow.EncodingH264
	p.SinkEncoding = flow.EncodingH264

	argv, err := BuildArgv(p, Options{Binary: "/opt/gst/bin/gst-launch-1.0"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/gst/bin/gst-launch-1.0", argv[0])
	assert.Contains(t, argv, "avdec_h264")
	assert.Contains(t, argv, "user-agent=streambed")
	assert.NotContains(t, argv, "rtph264pay")
	assert.Equal(t, []string{"fakesink", "name=sink"}, argv[len(argv)-2:])
}

func TestBuildStringQuotes(t *testing.T) {
	b := NewBuilder("").Element("textoverlay").Prop("text", "it's late").PropString("font-desc", "")
	assert.Equal(t, `'gst-launch-1.0' '-v' '-m' 'textoverlay' 'text=it'\''s late'`, b.BuildString())

	argv := b.BuildArgv()
	argv[0] = "changed"
	assert.Equal(t, DefaultBinary, b.BuildArgv()[0])
}

func TestAccelerationSelectsCodecs(t *testing.T) {
	dec, err := decoder(flow.EncodingH264, flow.AccelerationOMX)
	require.NoError(t, err)
	assert.Equal(t, "omxh264dec", dec[0].factory)

	// no OMX H265 decoder; software fallback
	dec, err = decoder(flow.EncodingH265, flow.AccelerationOMX)
	require.NoError(t, err)
	assert.Equal(t, "libde265dec", dec[0].factory)

	enc, err := encoder(flow.EncodingMPEG2, flow.AccelerationNone)
	require.NoError(t, err)
	require.Len(t, enc, 2)
	assert.Equal(t, "mpegtsmux", enc[1].factory)

	_, err = encoder(flow.EncodingPNG, flow.AccelerationNone)
	assert.Error(t, err)
}
