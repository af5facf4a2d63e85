// Package sanitize derives storage identifiers for candidate records.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// UnknownName is the base used when no usable name is available.
const UnknownName = "Unknown"

const disambiguatorLen = 4

var (
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Sanitize builds "<base>_<disambiguator>" from a candidate's identity. An
// empty argument means the field is absent. Two candidates with the same
// name and the same last four phone characters collide.
func Sanitize(name, phone, email string) string {
	base := normalizeName(name)
	if d := disambiguator(phone, email); d != "" {
		return base + "_" + d
	}
	return base
}

func normalizeName(name string) string {
	if name == "" {
		return UnknownName
	}
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.TrimSpace(name)
	name = disallowed.ReplaceAllString(name, "")
	// "! Jane" becomes "Jane", not "_Jane"
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, "_")
	if name == "" {
		return UnknownName
	}
	return name
}

func disambiguator(phone, email string) string {
	if phone != "" {
		r := []rune(phone)
		if len(r) > disambiguatorLen {
			r = r[len(r)-disambiguatorLen:]
		}
		return pathSafe(string(r))
	}
	if email != "" {
		local, _, _ := strings.Cut(email, "@")
		r := []rune(local)
		if len(r) > disambiguatorLen {
			r = r[:disambiguatorLen]
		}
		return pathSafe(string(r))
	}
	return ""
}

// pathSafe drops separators and control characters so the identifier can be
// used as a file name or object key.
func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
