package dataadapter

import (
	"regexp"
	"strings"
)

var returningKeyword = regexp.MustCompile(`(?i)\bRETURNING\b`)

// HasReturning reports whether query carries a RETURNING clause. Quoted
// literals, quoted identifiers and comments are ignored, so a value such as
// 'Returning Home' does not count.
func HasReturning(query string) bool {
	return returningKeyword.MatchString(StripQuoted(query))
}

// StripQuoted blanks out the contents of quoted literals, quoted identifiers
// and comments in query, keeping the quote characters. Single-quoted text
// follows standard SQL, where '' is an escaped quote.
func StripQuoted(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			b.WriteByte(c)
			for i++; i < len(query); i++ {
				if query[i] != c {
					continue
				}
				if i+1 < len(query) && query[i+1] == c {
					i++
					continue
				}
				b.WriteByte(c)
				break
			}
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			if i < len(query) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
