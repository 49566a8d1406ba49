package organizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"flora/internal/ledger"
	"flora/internal/services"
	"flora/internal/species"
	"flora/internal/textutil"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Name is a file name split along the naming convention.
type Name struct {
	Prefix  string
	Species string
	Stem    string
	Ext     string
}

// String reassembles the file name.
func (n Name) String() string {
	return n.Prefix + "_" + n.Species + "_" + n.Stem + n.Ext
}

// ValidatePrefix trims prefix and checks it is a single alphanumeric token.
func ValidatePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if !prefixPattern.MatchString(prefix) {
		return "", services.Wrap(
			services.ErrValidation,
			"organizer",
			"validate prefix",
			fmt.Sprintf("prefix %q must be non-empty and contain only letters and digits", prefix),
			nil,
		)
	}
	return prefix, nil
}

// FormatName builds the conventional name for filename. A name this prefix
// already gave the same species is returned unchanged; any other name keeps
// its whole original stem.
func FormatName(prefix, speciesName, filename string) string {
	normalized := species.NormalizeOrSentinel(speciesName)
	if parsed, ok := ParseName(filename); ok && parsed.Prefix == prefix && parsed.Species == normalized {
		return parsed.String()
	}
	return formatFromStem(prefix, normalized, strings.TrimSuffix(filename, filepath.Ext(filename)), filepath.Ext(filename))
}

func formatFromStem(prefix, speciesName, stem, ext string) string {
	return Name{
		Prefix:  prefix,
		Species: species.NormalizeOrSentinel(speciesName),
		Stem:    textutil.SanitizeToken(stem),
		Ext:     ext,
	}.String()
}

// ParseName splits filename along the convention. The first token is the
// prefix, the last is the stem and everything between is the species. Every
// species token needs at least one letter, so camera names such as
// IMG_20240101_123456.jpg do not parse.
//
// A parsed name only says the shape fits; use ConfirmedBy to check that the
// name was derived from a ledger row.
func ParseName(filename string) (Name, bool) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	tokens := strings.Split(base, "_")
	if len(tokens) < 3 {
		return Name{}, false
	}
	prefix := tokens[0]
	stem := tokens[len(tokens)-1]
	middle := tokens[1 : len(tokens)-1]
	if !prefixPattern.MatchString(prefix) || !validStem(stem) {
		return Name{}, false
	}
	for _, token := range middle {
		if !species.ValidToken(token) || !hasLetter(token) {
			return Name{}, false
		}
	}
	return Name{
		Prefix:  prefix,
		Species: strings.Join(middle, "_"),
		Stem:    stem,
		Ext:     ext,
	}, true
}

// ConfirmedBy reports whether led holds the row n was built from: same
// species, same extension, and a file name whose stem maps to n.Stem. Rows
// recorded under an earlier conventional name match through their parsed
// stem.
func (n Name) ConfirmedBy(led *ledger.Ledger) bool {
	if led == nil {
		return false
	}
	for _, row := range led.Rows() {
		ext := filepath.Ext(row.Filename)
		if !strings.EqualFold(ext, n.Ext) {
			continue
		}
		if species.NormalizeOrSentinel(row.Species) != n.Species {
			continue
		}
		if textutil.SanitizeToken(strings.TrimSuffix(row.Filename, ext)) == n.Stem {
			return true
		}
		if earlier, ok := ParseName(row.Filename); ok && earlier.Stem == n.Stem {
			return true
		}
	}
	return false
}

func hasLetter(token string) bool {
	for _, r := range token {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

func validStem(stem string) bool {
	if stem == "" {
		return false
	}
	for _, r := range stem {
		if r == '_' || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
