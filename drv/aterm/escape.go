package aterm

import "strings"

// escapeString applies the derivation format's C-style escapes: \\, \",
// \n, \r, \t.  Every other byte passes through literally -- there is no
// general \xNN escape in this format.
func escapeString(s string) string {
	var needsEscape bool
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '"', '\n', '\r', '\t':
			needsEscape = true
		}
	}
	if !needsEscape {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// unescapeString is escapeString's inverse.  pos must point at the byte
// just past the opening quote; it returns the decoded string and the
// index of the byte just past the closing quote.  A dangling escape (a
// trailing unescaped backslash, or backslash before an unrecognized
// byte) is reported as an error rather than silently passed through.
func unescapeString(s string, pos int) (string, int, error) {
	var b strings.Builder
	for pos < len(s) {
		c := s[pos]
		switch c {
		case '"':
			return b.String(), pos + 1, nil
		case '\\':
			pos++
			if pos >= len(s) {
				return "", 0, errParseAt(pos, "dangling escape at end of input")
			}
			switch e := s[pos]; e {
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, errParseAt(pos, "unrecognized escape sequence \\%c", e)
			}
			pos++
		default:
			b.WriteByte(c)
			pos++
		}
	}
	return "", 0, errParseAt(pos, "unterminated string literal")
}
