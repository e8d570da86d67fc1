// Package sanitize strips free text down to what the document and the
// spreadsheet can render safely.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// allowedExtra lists the non-ASCII letters and punctuation kept besides
// ASCII letters and digits.
const allowedExtra = "ÁÉÍÓÚÀÂÊÔÃÕÇáéíóúàâêôãõçºª -–—.,;:()/@"

func allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	}
	return strings.ContainsRune(allowedExtra, r)
}

// Text normalizes s. The result contains only allow-listed runes, single
// spaces and no leading or trailing whitespace. Text(Text(s)) == Text(s).
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return -1
		}
		return r
	}, s)
	s = tagRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("\n", " ", "\t", " ").Replace(s)
	s = strings.Map(func(r rune) rune {
		if allowed(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Value normalizes an arbitrary value; nil becomes "".
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return Text(x)
	case *string:
		if x == nil {
			return ""
		}
		return Text(*x)
	default:
		return Text(fmt.Sprint(x))
	}
}
