// Package jsonfield pulls single scalar values out of flat JSON request bodies
// without decoding the whole document.
//
// Only flat, single-level objects are supported. The first textual match of
// the quoted key anywhere in the document is used, so nested objects, arrays
// and duplicate keys give whatever value follows that first match. Quoted
// values end at the next double quote; escape sequences are not interpreted.
package jsonfield

import "strings"

// Extract returns the raw value stored under key in doc.
//
// For a quoted value the text between the quotes is returned. For anything
// else the text up to the first ',', '}' or ']' is returned untrimmed.
// ok is false when the key is absent, no ':' follows it, or a quoted value
// has no closing quote. doc is never modified.
func Extract(doc, key string) (value string, ok bool) {
	idx := strings.Index(doc, `"`+key+`"`)
	if idx < 0 {
		return "", false
	}
	rest := doc[idx+len(key)+2:]

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}
	rest = strings.TrimLeft(rest[colon+1:], " \t\r\n\v\f")

	if strings.HasPrefix(rest, `"`) {
		rest = rest[1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", false
		}
		return rest[:end], true
	}

	if end := strings.IndexAny(rest, ",}]"); end >= 0 {
		return rest[:end], true
	}
	return rest, true
}

// Atoi parses the leading decimal integer of s the way C's atoi does:
// leading whitespace is skipped, an optional sign is honoured and parsing
// stops at the first non-digit. It returns 0 when no digits are found.
func Atoi(s string) int {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<31 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
