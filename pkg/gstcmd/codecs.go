package gstcmd

import (
	"fmt"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

// rtpName is the infix of an encoding's rtp<name>depay / rtp<name>pay
// elements. PNG and AV1 have no RTP payload format here.
var rtpName = map[flow.Encoding]string{
	flow.EncodingRAW:   "vraw",
	flow.EncodingMJPEG: "jpeg",
	flow.EncodingMPEG2: "mp2t",
	flow.EncodingMPEG4: "mp4v",
	flow.EncodingH264:  "h264",
	flow.EncodingH265:  "h265",
	flow.EncodingVP8:   "vp8",
	flow.EncodingVP9:   "vp9",
}

func depayloader(enc flow.Encoding) (element, error) {
	name, ok := rtpName[enc]
	if !ok {
		return element{}, fmt.Errorf("no RTP depayloader for %s", enc)
	}
	return el("rtp" + name + "depay"), nil
}

func payloader(enc flow.Encoding) (element, error) {
	name, ok := rtpName[enc]
	if !ok {
		return element{}, fmt.Errorf("no RTP payloader for %s", enc)
	}
	e := el("rtp" + name + "pay")
	// Resend parameter sets so receivers can join mid-stream.
	switch enc {
	case flow.EncodingH264, flow.EncodingH265:
		e.props = append(e.props, prop{"config-interval", "-1"})
	case flow.EncodingMPEG4:
		e.props = append(e.props, prop{"config-interval", "1"})
	}
	return e, nil
}

// decoder returns the decode chain for enc, source side first.
func decoder(enc flow.Encoding, accel flow.Acceleration) ([]element, error) {
	switch enc {
	case flow.EncodingPNG:
		return []element{el("pngdec"), el("videoconvert"), el("imagefreeze")}, nil
	case flow.EncodingMJPEG:
		return []element{el("jpegdec")}, nil
	case flow.EncodingMPEG2:
		return []element{el("tsdemux"), el("mpeg2dec")}, nil
	case flow.EncodingMPEG4:
		return []element{el("avdec_mpeg4", "output-corrupt", "false")}, nil
	case flow.EncodingH264:
		switch accel {
		case flow.AccelerationVAAPI:
			return []element{el("vaapih264dec")}, nil
		case flow.AccelerationOMX:
			return []element{el("omxh264dec")}, nil
		}
		return []element{el("avdec_h264", "output-corrupt", "false")}, nil
	case flow.EncodingH265:
		if accel == flow.AccelerationVAAPI {
			return []element{el("vaapih265dec")}, nil
		}
		return []element{el("libde265dec")}, nil
	case flow.EncodingVP8:
		switch accel {
		case flow.AccelerationVAAPI:
			return []element{el("vaapivp8dec")}, nil
		case flow.AccelerationOMX:
			return []element{el("omxvp8dec")}, nil
		}
		return []element{el("vp8dec")}, nil
	case flow.EncodingVP9:
		if accel == flow.AccelerationVAAPI {
			return []element{el("vaapivp9dec")}, nil
		}
		return []element{el("vp9dec")}, nil
	case flow.EncodingAV1:
		return []element{el("av1dec")}, nil
	}
	return nil, fmt.Errorf("no decoder for %s", enc)
}

// encoder returns the encode chain for enc, source side first.
func encoder(enc flow.Encoding, accel flow.Acceleration) ([]element, error) {
	switch enc {
	case flow.EncodingMJPEG:
		return []element{el("jpegenc")}, nil
	case flow.EncodingMPEG2:
		return []element{el("mpeg2enc"), el("mpegtsmux")}, nil
	case flow.EncodingMPEG4:
		return []element{el("avenc_mpeg4")}, nil
	case flow.EncodingH264:
		switch accel {
		case flow.AccelerationVAAPI:
			return []element{el("vaapih264enc", "quality-level", "6", "tune", "low-power")}, nil
		case flow.AccelerationOMX:
			return []element{el("omxh264enc")}, nil
		}
		return []element{el("x264enc", "tune", "zerolatency", "speed-preset", "superfast")}, nil
	case flow.EncodingH265:
		if accel == flow.AccelerationVAAPI {
			return []element{el("vaapih265enc", "quality-level", "6", "tune", "low-power")}, nil
		}
		return []element{el("x265enc", "tune", "zerolatency", "speed-preset", "superfast")}, nil
	case flow.EncodingVP8:
		if accel == flow.AccelerationVAAPI {
			return []element{el("vaapivp8enc")}, nil
		}
		return []element{el("vp8enc")}, nil
	case flow.EncodingVP9:
		if accel == flow.AccelerationVAAPI {
			return []element{el("vaapivp9enc")}, nil
		}
		return []element{el("vp9enc")}, nil
	case flow.EncodingAV1:
		return []element{el("av1enc")}, nil
	}
	return nil, fmt.Errorf("no encoder for %s", enc)
}
