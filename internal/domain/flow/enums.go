package flow

import "fmt"

// Acceleration selects the video acceleration family used when a flow
// needs to decode or encode.
type Acceleration string

const (
	AccelerationNone  Acceleration = "NONE"
	AccelerationVAAPI Acceleration = "VAAPI"
	AccelerationOMX   Acceleration = "OMX"
)

// ParseAcceleration accepts the wire spelling. Empty means NONE.
func ParseAcceleration(s string) (Acceleration, error) {
	switch s {
	case "", string(AccelerationNone):
		return AccelerationNone, nil
	case string(AccelerationVAAPI):
		return AccelerationVAAPI, nil
	case string(AccelerationOMX):
		return AccelerationOMX, nil
	}
	return "", fmt.Errorf("invalid acceleration %q", s)
}

// Transport restricts the lower transport negotiated for RTSP sources.
type Transport string

const (
	TransportAny   Transport = "ANY"
	TransportUDP   Transport = "UDP"
	TransportMcast Transport = "MCAST"
	TransportTCP   Transport = "TCP"
)

// ParseTransport accepts the wire spelling. Empty means ANY.
func ParseTransport(s string) (Transport, error) {
	switch s {
	case "", string(TransportAny):
		return TransportAny, nil
	case string(TransportUDP):
		return TransportUDP, nil
	case string(TransportMcast):
		return TransportMcast, nil
	case string(TransportTCP):
		return TransportTCP, nil
	}
	return "", fmt.Errorf("invalid rtsp transport %q", s)
}

// Encoding names a video encoding. The empty encoding is kept as-is in
// configuration; see EffectiveSource and EffectiveSink for its meaning.
type Encoding string

const (
	EncodingUnset Encoding = ""
	EncodingRAW   Encoding = "RAW"
	EncodingPNG   Encoding = "PNG"
	EncodingMJPEG Encoding = "MJPEG"
	EncodingMPEG2 Encoding = "MPEG2"
	EncodingMPEG4 Encoding = "MPEG4"
	EncodingH264  Encoding = "H264"
	EncodingH265  Encoding = "H265"
	EncodingVP8   Encoding = "VP8"
	EncodingVP9   Encoding = "VP9"
	EncodingAV1   Encoding = "AV1"
)

var encodings = map[Encoding]struct{}{
	EncodingUnset: {}, EncodingRAW: {}, EncodingPNG: {}, EncodingMJPEG: {},
	EncodingMPEG2: {}, EncodingMPEG4: {}, EncodingH264: {}, EncodingH265: {},
	EncodingVP8: {}, EncodingVP9: {}, EncodingAV1: {},
}

// ParseEncoding accepts the wire spelling, including the empty encoding.
func ParseEncoding(s string) (Encoding, error) {
	if _, ok := encodings[Encoding(s)]; !ok {
		return "", fmt.Errorf("invalid encoding %q", s)
	}
	return Encoding(s), nil
}

// AspectRatio controls whether the sink letterboxes (PRESERVE) or
// stretches (FILL) the picture into its placement.
type AspectRatio string

const (
	AspectFill     AspectRatio = "FILL"
	AspectPreserve AspectRatio = "PRESERVE"
)

// ParseAspectRatio accepts the wire spelling. Empty means FILL.
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch s {
	case "", string(AspectFill):
		return AspectFill, nil
	case string(AspectPreserve):
		return AspectPreserve, nil
	}
	return "", fmt.Errorf("invalid aspect ratio %q", s)
}

// State is the runtime state of a flow as reported to the controller.
// StateNone means the flow has no running unit.
type State string

const (
	StateNone     State = ""
	StateStarting State = "STARTING"
	StatePlaying  State = "PLAYING"
	StateFailed   State = "FAILED"
)

// ParseState accepts the three reported states.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateStarting, StatePlaying, StateFailed:
		return State(s), nil
	}
	return "", fmt.Errorf("invalid state %q", s)
}
