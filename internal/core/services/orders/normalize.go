package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize folds case, applies NFKC and collapses whitespace.
func normalize(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// words splits normalized text on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Fingerprint identifies order content independent of objective order.
func Fingerprint(templateCode, zoneID string, objectives []string) string {
	normalized := make([]string, 0, len(objectives))
	for _, o := range objectives {
		normalized = append(normalized, normalize(o))
	}
	slices.Sort(normalized)

	h := sha256.New()
	h.Write([]byte(normalize(templateCode)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(zoneID)))
	for _, o := range normalized {
		h.Write([]byte{0})
		h.Write([]byte(o))
	}
	return hex.EncodeToString(h.Sum(nil))
}
