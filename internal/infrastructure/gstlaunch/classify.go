package gstlaunch

import (
	"strconv"
	"strings"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/pkg/gstcmd"
)

type lineKind int

const (
	lineOther lineKind = iota
	// lineBuffer is one buffer passing the stats identity.
	lineBuffer
	// lineError is a fatal pipeline error.
	lineError
	// lineSilence is a source timeout message.
	lineSilence
	// lineDrop is a jitterbuffer drop message.
	lineDrop
)

var (
	bufferMarker = "GstIdentity:" + gstcmd.StatsElement + ": last-message = "
	dropMarker   = `from element "` + gstcmd.JitterElement + `" (element): drop-msg,`

	silenceMarkers = []string{"GstUDPSrcTimeout", "GstRTSPSrcTimeout"}
)

// classify maps one line of `gst-launch -v -m` output to a kind and, for
// errors and silence, a reason.
func classify(line string) (lineKind, string) {
	switch {
	case strings.Contains(line, bufferMarker):
		return lineBuffer, ""
	case strings.Contains(line, dropMarker):
		return lineDrop, ""
	case strings.HasPrefix(line, "ERROR: "):
		return lineError, strings.TrimPrefix(line, "ERROR: ")
	case strings.HasPrefix(line, "WARNING: erroneous pipeline: "):
		return lineError, strings.TrimPrefix(line, "WARNING: ")
	case strings.HasPrefix(line, "Got EOS from element"):
		return lineError, "end of stream"
	}
	for _, m := range silenceMarkers {
		if strings.Contains(line, m) {
			return lineSilence, m
		}
	}
	return lineOther, ""
}

// dropCounters reads a drop message. Packets dropped on latency never
// made it out of the jitterbuffer and count as lost; packets arriving
// after their deadline count as late. The num-* fields cover every drop
// since the previous message; without them the message stands for one
// packet of its reason.
func dropCounters(line string) flow.Counters {
	var c flow.Counters
	lost, okLost := structUint(line, "num-drop-on-latency")
	late, okLate := structUint(line, "num-too-late")
	if okLost || okLate {
		c.Lost, c.Late = lost, late
		return c
	}
	switch {
	case strings.Contains(line, "reason=(string)drop-on-latency"):
		c.Lost = 1
	case strings.Contains(line, "reason=(string)too-late"):
		c.Late = 1
	}
	return c
}

// structUint reads name=(type)N from a serialized GstStructure.
func structUint(line, name string) (uint64, bool) {
	i := strings.Index(line, " "+name+"=")
	if i < 0 {
		return 0, false
	}
	v := line[i+len(name)+2:]
	if strings.HasPrefix(v, "(") {
		j := strings.IndexByte(v, ')')
		if j < 0 {
			return 0, false
		}
		v = v[j+1:]
	}
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.ParseUint(v[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
