package hostutil

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode"
)

// ValidateHost accepts a dotted-quad IPv4 address, an IPv6 literal
// (optionally bracketed) or an RFC 1123 hostname.
func ValidateHost(raw string) error {
	switch {
	case raw == "":
		return fmt.Errorf("empty host")
	case looksLikeIPv4(raw):
		if addr, err := netip.ParseAddr(raw); err != nil || !addr.Is4() {
			return fmt.Errorf("bad IP: '%s'", raw)
		}
	case looksLikeIPv6(raw):
		if addr, err := netip.ParseAddr(strings.Trim(raw, "[]")); err != nil || !addr.Is6() {
			return fmt.Errorf("bad IPv6: '%s'", raw)
		}
	default:
		if !validateHostname(raw) {
			return fmt.Errorf("bad hostname: '%s'", raw)
		}
	}
	return nil
}

// IsMulticast reports whether raw is a multicast IP literal.
func IsMulticast(raw string) bool {
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	return err == nil && addr.IsMulticast()
}

// looksLikeIPv4 checks if raw looks like dotted quad
func looksLikeIPv4(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

func looksLikeIPv6(raw string) bool {
	return strings.Contains(raw, ":") || (strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"))
}

// validateHostname checks DNS label rules (RFC 1123)
func validateHostname(raw string) bool {
	if len(raw) > 253 {
		return false
	}
	for _, label := range strings.Split(raw, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				return false
			}
		}
	}
	return true
}
