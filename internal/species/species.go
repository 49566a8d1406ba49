// Package species holds the identification result model shared by the
// recognition client, the ledger and the organizer.
package species

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unidentified marks images without a confident match.
const Unidentified = "unidentified"

// Result is one ranked answer from the recognition service.
type Result struct {
	ImageFilename string  `json:"image_filename"`
	Species       string  `json:"species"`
	Confidence    float64 `json:"confidence"`
	Rank          int     `json:"rank"`
}

// Accepted reports whether r is the rank-1 answer for its image.
func (r Result) Accepted() bool {
	return r.Rank == 1
}

// Normalize folds a species name into the lowercase, underscore separated form
// used in ledgers and filenames. Diacritics are dropped and every character
// outside [a-z0-9-] becomes a separator. An empty result means the name had no
// usable characters.
func Normalize(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = cases.Lower(language.Und).String(strings.TrimSpace(folded))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// NormalizeOrSentinel normalizes name and substitutes Unidentified when nothing
// usable remains.
func NormalizeOrSentinel(name string) string {
	if normalized := Normalize(name); normalized != "" {
		return normalized
	}
	return Unidentified
}

// IsUnidentified reports whether a normalized species carries the sentinel.
func IsUnidentified(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), Unidentified)
}

// ValidToken reports whether s is a single species token of the naming
// convention: non-empty and limited to [a-z0-9-].
func ValidToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
			return false
		}
	}
	return true
}

// Display renders a normalized species for humans ("ficus_lyrata" -> "Ficus lyrata").
func Display(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	if len(words) == 0 {
		return ""
	}
	words[0] = cases.Title(language.Und).String(words[0])
	return strings.Join(words, " ")
}
