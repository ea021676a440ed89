package relay

import (
	"strings"
	"unicode/utf8"
)

// Replacement rewrites one glyph (or mojibake byte sequence) to an ASCII
// substitute before the generic non-ASCII strip runs.
type Replacement struct {
	Old string
	New string
}

// DefaultReplacements covers the glyphs dev-server tooling is known to emit
// under mismatched terminal encodings: the "building" triangle and the
// "success" check mark, in both their proper UTF-8 form and the mojibake
// produced when that UTF-8 is re-read as latin-1.
var DefaultReplacements = []Replacement{
	{"â–²", "^"}, // mojibake ▲
	{"▲", "^"},             // ▲
	{"âœ“", "v"}, // mojibake ✓
	{"✓", "v"},             // ✓
}

// Sanitizer normalizes child output lines to plain ASCII. Known glyphs are
// substituted first, then any remaining non-ASCII bytes are dropped. The pass
// is idempotent and leaves plain-ASCII lines untouched.
type Sanitizer struct {
	replacer *strings.Replacer
}

// NewSanitizer builds a sanitizer with the given substitution table.
// Substitutes must themselves be ASCII or they would survive one pass and be
// stripped by the next, breaking idempotence.
func NewSanitizer(reps []Replacement) *Sanitizer {
	pairs := make([]string, 0, len(reps)*2)
	for _, r := range reps {
		pairs = append(pairs, r.Old, asciiOnly(r.New))
	}
	return &Sanitizer{replacer: strings.NewReplacer(pairs...)}
}

// DefaultSanitizer returns a sanitizer with the default substitution table.
func DefaultSanitizer() *Sanitizer { return NewSanitizer(DefaultReplacements) }

// Clean returns the ASCII-only form of line.
func (s *Sanitizer) Clean(line string) string {
	if isASCII(line) {
		return line
	}
	return asciiOnly(s.replacer.Replace(line))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func asciiOnly(s string) string {
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < utf8.RuneSelf {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
