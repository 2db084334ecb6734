package avurl

import "strings"

// metadata records the separators seen by split so join can rebuild the
// exact input.
type metadata struct {
	hasSchema bool
	slashNum  int
	hasAtSign bool
	hasBrks   bool
	hasPort   bool
	junk      string
}

// split follows FFmpeg's av_url_split (libavformat/utils.c) without buffer
// truncation. The port is kept as the raw substring; isPort validates it.
func split(url string) (schema, userinfo, host, port, path string, md metadata) {
	colon := strings.IndexByte(url, ':')
	if colon == -1 {
		// no scheme: the whole input is a path
		path = url
		return
	}
	md.hasSchema = true
	schema = url[:colon]

	cursor := colon + 1
	for i := 0; i < 2; i++ {
		if cursor == len(url) {
			return
		}
		if url[cursor] != '/' {
			break
		}
		cursor++
		md.slashNum++
	}
	if cursor == len(url) {
		return
	}

	pathAt := cursor + strcspn(url[cursor:], "/?#")
	path = url[pathAt:]
	if pathAt == cursor {
		return
	}

	// userinfo runs up to the last '@' of the authority
	start := cursor
	for {
		at := strings.IndexByte(url[cursor:pathAt], '@')
		if at == -1 {
			break
		}
		md.hasAtSign = true
		userinfo = url[start : cursor+at]
		cursor += at + 1
		if cursor == len(url) {
			return
		}
	}

	if brk := strings.IndexByte(url[cursor:pathAt], ']'); brk != -1 && url[cursor] == '[' {
		md.hasBrks = true
		host = url[cursor+1 : cursor+brk]
		cursor += brk + 1
		if cursor == len(url) {
			return
		}
		if url[cursor] == ':' {
			md.hasPort = true
			port = url[cursor+1 : pathAt]
		} else if cursor != pathAt {
			md.junk = url[cursor:pathAt]
		}
		return
	}

	if c := strings.IndexByte(url[cursor:pathAt], ':'); c != -1 {
		md.hasPort = true
		host = url[cursor : cursor+c]
		port = url[cursor+c+1 : pathAt]
		return
	}
	host = url[cursor:pathAt]
	return
}

func join(schema, userinfo, host, port, path string, md metadata) string {
	var b strings.Builder
	b.WriteString(schema)
	if md.hasSchema {
		b.WriteByte(':')
	}
	b.WriteString(strings.Repeat("/", md.slashNum))
	b.WriteString(userinfo)
	if md.hasAtSign {
		b.WriteByte('@')
	}
	if md.hasBrks {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	if md.hasPort {
		b.WriteByte(':')
	}
	b.WriteString(port)
	b.WriteString(md.junk)
	b.WriteString(path)
	return b.String()
}

// strcspn returns the length of the initial segment of s that
// contains none of the bytes in reject.
func strcspn(s, reject string) int {
	if idx := strings.IndexAny(s, reject); idx != -1 {
		return idx
	}
	return len(s)
}
