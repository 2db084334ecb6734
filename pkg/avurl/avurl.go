package avurl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/edirooss/streambed-server/pkg/hostutil"
)

type URL struct {
	Schema   string `json:"schema"`
	Userinfo string `json:"userinfo"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Path     string `json:"path"`

	md metadata
}

// Parse splits a URL string into components and validates the host and
// port. Returns a structured URL object on success.
func Parse(url string) (*URL, error) {
	schema, userinfo, host, port, path, md := split(url)

	/* invariant: url must equal re-joined parts; failure here means split is broken */
	if url != join(schema, userinfo, host, port, path, md) {
		return nil, errors.New("unable to parse URL")
	}

	if md.junk != "" /* leftover junk after ']' */ {
		return nil, errors.New("invalid URL")
	}

	if host != "" {
		if err := hostutil.ValidateHost(host); err != nil {
			return nil, err
		}
	}

	if port != "" && !isPort(port) {
		return nil, fmt.Errorf("bad port: '%s'", port)
	}

	return &URL{
		Schema:   schema,
		Userinfo: userinfo,
		Host:     host,
		Port:     port,
		Path:     path,
		md:       md,
	}, nil
}

// String re-joins the URL exactly as parsed.
func (u *URL) String() string {
	return join(u.Schema, u.Userinfo, u.Host, u.Port, u.Path, u.md)
}

// Redacted returns the URL with any password in the userinfo replaced.
func (u *URL) Redacted() string {
	userinfo := u.Userinfo
	for i := 0; i < len(userinfo); i++ {
		if userinfo[i] == ':' {
			userinfo = userinfo[:i+1] + "xxxxx"
			break
		}
	}
	return join(u.Schema, userinfo, u.Host, u.Port, u.Path, u.md)
}

// Redact is Redacted for a raw string. Unparsable input is returned as is.
func Redact(raw string) string {
	u, err := Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

// isPort checks if the string represents a valid port number (0–65535).
func isPort(s string) bool {
	// reject leading zeros
	if len(s) > 1 && s[0] == '0' {
		return false
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return port >= 0 && port <= 65535
}
