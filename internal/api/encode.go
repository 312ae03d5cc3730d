package api

import "strings"

const upperhex = "0123456789ABCDEF"

// EscapeVariableID percent-encodes a variable ID for the secrets endpoint.
// Slashes separate policy branches in a variable ID and are kept as-is.
// Every other byte outside the RFC 3986 unreserved set is encoded, so a
// space becomes %20 rather than +.
func EscapeVariableID(id string) string {
	return escape(id, true)
}

// EscapeSegment percent-encodes a single path segment, including any
// slash. Logins and host IDs such as host/app/web are sent this way.
func EscapeSegment(s string) string {
	return escape(s, false)
}

func escape(s string, keepSlash bool) string {
	var b strings.Builder
	b.Grow(len(s) * 3)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (keepSlash && c == '/') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
