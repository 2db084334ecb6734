package flow

import (
	"errors"
	"fmt"

	"github.com/edirooss/streambed-server/pkg/avurl"
	"github.com/edirooss/streambed-server/pkg/hostutil"
)

// SourceKind classifies a location by URI scheme.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceRTSP
	SourceRTP
	SourceHTTP
	SourceTest
)

var sourceSchemes = map[string]SourceKind{
	"rtsp":  SourceRTSP,
	"rtsps": SourceRTSP,
	"udp":   SourceRTP,
	"http":  SourceHTTP,
	"https": SourceHTTP,
	"test":  SourceTest,
}

// SourceKindOf returns the source kind of a location. Unknown schemes map
// to SourceNone.
func SourceKindOf(location string) SourceKind {
	u, err := avurl.Parse(location)
	if err != nil {
		return SourceNone
	}
	return sourceSchemes[u.Schema]
}

// ValidateLocation
// Validation for source locations (i.e., where media comes from).
//
// Policy:
//   - Empty is valid and means "no source".
//   - Require a supported protocol; a bare path would be read as a local file.
//   - Network sources require a host.
func ValidateLocation(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := avurl.Parse(raw)
	if err != nil {
		return err
	}
	if u.Schema == "" {
		return errors.New("missing protocol")
	}
	kind, ok := sourceSchemes[u.Schema]
	if !ok {
		return fmt.Errorf("unsupported protocol '%s'", u.Schema)
	}
	if kind != SourceTest && u.Host == "" {
		return fmt.Errorf("missing host for '%s' source", u.Schema)
	}
	if kind == SourceRTP && u.Port == "" {
		return errors.New("missing port for 'udp' source")
	}
	return nil
}

// ValidateSinkAddress accepts an empty address (no network sink) or a host.
func ValidateSinkAddress(raw string) error {
	if raw == "" {
		return nil
	}
	return hostutil.ValidateHost(raw)
}
