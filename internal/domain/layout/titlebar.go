package layout

import (
	"strconv"
	"strings"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

const (
	MinFontSize = 6
	MaxFontSize = 96
)

// ValidateTitleBar checks the present title-bar fields. A font size of 0
// selects the default size.
func ValidateTitleBar(tb flow.TitleBar, present flow.FieldSet) []*flow.ValidationError {
	var errs []*flow.ValidationError
	if present.Has(flow.FieldFontSize) && tb.FontSize != 0 &&
		(tb.FontSize < MinFontSize || tb.FontSize > MaxFontSize) {
		errs = append(errs, flow.Invalid(flow.FieldFontSize, "%d is outside [%d,%d]", tb.FontSize, MinFontSize, MaxFontSize))
	}
	if present.Has(flow.FieldAccent) && !isAccent(tb.Accent) {
		errs = append(errs, flow.Invalid(flow.FieldAccent, "%q is not an RRGGBB color", tb.Accent))
	}
	return errs
}

// FontSize resolves the configured size, 0 meaning the default.
func FontSize(tb flow.TitleBar) int {
	if tb.FontSize == 0 {
		return flow.DefaultFontSize
	}
	return int(tb.FontSize)
}

func isAccent(s string) bool {
	if s == "" {
		return true
	}
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// TitleText joins the non-empty title-bar labels in display order.
func TitleText(tb flow.TitleBar) string {
	var parts []string
	for _, s := range []string{tb.MonitorID, tb.CameraID, tb.Title, tb.ExtraLabel} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "  ")
}

// AccentARGB returns the accent as an opaque ARGB word, white when unset.
func AccentARGB(tb flow.TitleBar) uint32 {
	if tb.Accent == "" || !isAccent(tb.Accent) {
		return 0xFFFFFFFF
	}
	rgb, _ := strconv.ParseUint(tb.Accent, 16, 32)
	return 0xFF000000 | uint32(rgb)
}
