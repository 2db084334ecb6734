package gstcmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/domain/layout"
)

const (
	// StatsElement names the identity element whose last-message lines
	// count pushed buffers.
	StatsElement = "stats"
	// JitterElement names the RTP jitterbuffer whose drop messages count
	// lost and late packets.
	JitterElement = "jitter"

	// Cropped flows are scaled to a fixed canvas first; the crop is
	// computed in canvas pixels.
	CanvasWidth  = 1280
	CanvasHeight = 720

	clockRate    = 90000
	ttlMulticast = 15
	overlayColor = 0xFFFFFFE0
	queueTime    = time.Second
)

var ErrNoSource = errors.New("no source location")

// Options tune FromPipeline. The zero value is usable.
type Options struct {
	Binary    string // DefaultBinary when empty
	UserAgent string // sent by RTSP sources; "streambed" when empty
}

// FromPipeline materializes a Builder from a flow pipeline.
//
// Element order, source first:
//
//	source [! caps ! rtpjitterbuffer] ! identity name=stats
//	  [! depay] [! queue ! decode] [! videoscale ! caps ! videobox]
//	  [! textoverlay]... [! queue ! encode] [! pay] ! sink
//
// The pipeline transcodes when the encodings differ or when anything is
// drawn on or cropped from the picture. Without a network sink the flow
// decodes into a fakesink so that the source is still verified.
func FromPipeline(p flow.Pipeline, opts Options) (*Builder, error) {
	kind := flow.SourceKindOf(p.Location)
	if kind == flow.SourceNone {
		return nil, ErrNoSource
	}
	src := p.SourceEncoding
	if kind == flow.SourceTest {
		src = flow.EncodingRAW
	}
	sink := p.SinkEncoding
	if !p.HasNetworkSink() {
		sink = flow.EncodingRAW
	}
	title := ""
	if p.TitleBar.Visible {
		title = layout.TitleText(p.TitleBar)
	}
	cropped := layout.IsCropped(p.Matrix)
	transcode := src != sink || p.OverlayText != "" || title != "" || cropped

	b := NewBuilder(opts.Binary)

	// --- Source ---
	switch kind {
	case flow.SourceRTP:
		b.Element("udpsrc").Prop("name", "src").
			Prop("uri", p.Location).
			PropInt("timeout", p.Timeout.Nanoseconds())
		b.Caps(rtpCaps(src, p.Sprops))
		b.Element("rtpjitterbuffer").Prop("name", JitterElement).
			PropInt("latency", p.Latency.Milliseconds()).
			PropInt("max-dropout-time", p.Timeout.Milliseconds()).
			PropBool("post-drop-messages", true)
	case flow.SourceRTSP:
		agent := opts.UserAgent
		if agent == "" {
			agent = "streambed"
		}
		b.Element("rtspsrc").Prop("name", "src").
			Prop("location", p.Location).
			PropString("protocols", rtspProtocols(p.RTSPTransport)).
			PropInt("tcp-timeout", p.Timeout.Microseconds()).
			PropInt("timeout", p.Timeout.Microseconds()).
			PropInt("latency", p.Latency.Milliseconds()).
			PropBool("do-retransmission", false).
			Prop("user-agent", agent)
	case flow.SourceHTTP:
		if src != flow.EncodingPNG && src != flow.EncodingMJPEG {
			return nil, fmt.Errorf("invalid encoding for HTTP source: %s", src)
		}
		b.Element("souphttpsrc").Prop("name", "src").
			Prop("location", p.Location).
			PropInt("timeout", int64(p.Timeout/time.Second)).
			PropInt("retries", 0)
	case flow.SourceTest:
		b.Element("videotestsrc").Prop("name", "src").
			Prop("pattern", "smpte75").
			PropBool("is-live", true)
	}
	b.Element("identity").Prop("name", StatsElement).PropBool("silent", false)

	// --- Depayload ---
	if kind == flow.SourceRTP || kind == flow.SourceRTSP {
		dp, err := depayloader(src)
		if err != nil {
			return nil, err
		}
		b.chain(dp)
	}

	// --- Decode ---
	if transcode && src != flow.EncodingRAW {
		dec, err := decoder(src, p.Acceleration)
		if err != nil {
			return nil, err
		}
		queue(b, false)
		b.chain(dec...)
	}

	// --- Raw video ---
	if transcode {
		if cropped {
			c := layout.CropFor(p.Matrix, CanvasWidth, CanvasHeight)
			b.Element("videoconvert")
			b.Element("videoscale").PropBool("add-borders", p.AspectRatio == flow.AspectPreserve)
			b.Caps("video/x-raw,width=" + strconv.Itoa(CanvasWidth) + ",height=" + strconv.Itoa(CanvasHeight))
			b.Element("videobox").
				PropInt("top", int64(c.Top)).
				PropInt("bottom", int64(c.Bottom)).
				PropInt("left", int64(c.Left)).
				PropInt("right", int64(c.Right))
		}
		if title != "" {
			size := layout.FontSize(p.TitleBar)
			b.Element("textoverlay").
				Prop("text", title).
				Prop("font-desc", "Overpass, Bold "+strconv.Itoa(size)).
				PropUint("color", uint64(layout.AccentARGB(p.TitleBar))).
				PropBool("shaded-background", true).
				Prop("wrap-mode", "none").
				Prop("halignment", "left").
				Prop("valignment", "top").
				PropInt("xpad", int64(size/2)).
				PropInt("ypad", int64(size/2))
		}
		if p.OverlayText != "" {
			queue(b, false)
			b.Element("textoverlay").
				PropBool("auto-resize", false).
				Prop("text", p.OverlayText).
				Prop("font-desc", "Overpass, Bold "+strconv.Itoa(flow.DefaultFontSize)).
				PropBool("shaded-background", false).
				PropUint("color", overlayColor).
				Prop("wrap-mode", "none").
				Prop("halignment", "right").
				Prop("valignment", "top")
		}
	}

	// --- Encode ---
	if transcode && sink != flow.EncodingRAW {
		enc, err := encoder(sink, p.Acceleration)
		if err != nil {
			return nil, err
		}
		queue(b, true)
		b.chain(enc...)
	}

	// --- Sink ---
	if p.HasNetworkSink() {
		pay, err := payloader(sink)
		if err != nil {
			return nil, err
		}
		b.chain(pay)
		b.Element("udpsink").Prop("name", "sink").
			Prop("host", p.SinkAddress).
			PropUint("port", uint64(p.SinkPort)).
			PropInt("ttl-mc", ttlMulticast)
	} else {
		b.Element("fakesink").Prop("name", "sink")
	}
	return b, nil
}

// BuildArgv constructs the canonical argv for a pipeline.
// Pure convenience over FromPipeline(p, opts).BuildArgv().
func BuildArgv(p flow.Pipeline, opts Options) ([]string, error) {
	b, err := FromPipeline(p, opts)
	if err != nil {
		return nil, err
	}
	return b.BuildArgv(), nil
}

// BuildString constructs the canonical shell-quoted command string.
func BuildString(p flow.Pipeline, opts Options) (string, error) {
	b, err := FromPipeline(p, opts)
	if err != nil {
		return "", err
	}
	return b.BuildString(), nil
}

// queue holds up to one second of buffers. A leaky queue drops old
// buffers in front of an encoder that falls behind.
func queue(b *Builder, leaky bool) {
	b.Element("queue").PropInt("max-size-time", queueTime.Nanoseconds())
	if leaky {
		b.Prop("leaky", "downstream")
	}
}

func rtpCaps(enc flow.Encoding, sprops string) string {
	caps := "application/x-rtp,clock-rate=" + strconv.Itoa(clockRate)
	if enc == flow.EncodingMPEG2 {
		caps += ",encoding-name=MP2T"
	}
	if sprops != "" {
		caps += `,sprop-parameter-sets=(string)"` + sprops + `"`
	}
	return caps
}

func rtspProtocols(t flow.Transport) string {
	switch t {
	case flow.TransportUDP:
		return "udp"
	case flow.TransportMcast:
		return "udp-mcast"
	case flow.TransportTCP:
		return "tcp"
	}
	return ""
}
