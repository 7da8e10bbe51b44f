// Package similarity scores how alike two sighting narratives are. Scores
// feed the duplicate candidate table; they are informational for key-based
// matches and decisive for the fuzzy date-only tier.
package similarity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/skymerge/saucer/internal/model"
)

const (
	// prefixRunes is the length of shared narrative opening that
	// short-circuits scoring. Catalogs copy descriptions from one another
	// and then truncate or extend them, so the tails may differ freely.
	prefixRunes = 20
	// prefixScore is the fixed score for shared-prefix matches.
	prefixScore = 0.95
	// jaccardFloor short-circuits sequence alignment when the two token
	// vocabularies barely overlap.
	jaccardFloor = 0.03
	// compareRunes caps the text fed to sequence alignment.
	compareRunes = 1000
)

var (
	nuforcHeaderRe = regexp.MustCompile(`^NUFORC UFO Sighting \d+\s*`)
	mufonNotesRe   = regexp.MustCompile(`(?s)Investigators?\s*Not(?:es?)?[.:,]?\s*(.+)`)
	tokenRe        = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// CleanFunc strips source-specific boilerplate from a description.
type CleanFunc func(string) string

// Scorer computes description similarity with per-source cleaning. The
// zero value is not usable; construct with NewScorer.
type Scorer struct {
	cleaners map[model.SourceID]CleanFunc
}

// NewScorer builds a scorer with the standard per-source cleaning table.
func NewScorer() *Scorer {
	return &Scorer{
		cleaners: map[model.SourceID]CleanFunc{
			model.SourceNUFORC: stripNUFORCHeader,
			model.SourceMUFON:  stripMUFONBoilerplate,
		},
	}
}

// Clean applies the source's cleaning strategy to a description. Sources
// without a registered strategy pass through unchanged.
func (s *Scorer) Clean(src model.SourceID, text string) string {
	if clean, ok := s.cleaners[src]; ok {
		return clean(text)
	}
	return text
}

// Score cleans both descriptions by source and scores them. The result is
// in [0, 1], symmetric in its arguments, and deterministic.
func (s *Scorer) Score(srcA model.SourceID, a string, srcB model.SourceID, b string) float64 {
	return s.ScoreCleaned(s.Clean(srcA, a), s.Clean(srcB, b))
}

// ScoreCleaned scores two already-cleaned descriptions: empty input scores
// zero, a shared opening of at least 20 runes scores a flat 0.95 no matter
// what follows, near-disjoint token vocabularies return their raw Jaccard
// overlap, and everything else gets a Ratcliff/Obershelp ratio over the
// first 1000 runes of each side.
func (s *Scorer) ScoreCleaned(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if sharedPrefixAtLeast(a, b, prefixRunes) {
		return prefixScore
	}
	jac := Jaccard(TokenSet(a), TokenSet(b))
	if jac < jaccardFloor {
		return jac
	}
	return alignmentRatio(a, b)
}

// TokenSet extracts the lower-cased word tokens of a description.
func TokenSet(s string) map[string]bool {
	tokens := tokenRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

// Jaccard computes set overlap over union. Either side empty scores zero.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// alignmentRatio runs the sequence matcher over rune sequences. The two
// sides are put in lexicographic order first: the underlying algorithm is
// not symmetric in its arguments, and score(a,b) must equal score(b,a).
func alignmentRatio(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	matcher := difflib.NewMatcher(truncatedRunes(a), truncatedRunes(b))
	return matcher.Ratio()
}

// truncatedRunes splits the first compareRunes runes into a sequence for
// the matcher.
func truncatedRunes(s string) []string {
	r := []rune(s)
	if len(r) > compareRunes {
		r = r[:compareRunes]
	}
	return strings.Split(string(r), "")
}

// sharedPrefixAtLeast reports whether the two narratives, case-folded and
// trimmed, open with at least n identical runes.
func sharedPrefixAtLeast(a, b string, n int) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	count := 0
	for a != "" && b != "" {
		ra, sizeA := utf8.DecodeRuneInString(a)
		rb, sizeB := utf8.DecodeRuneInString(b)
		if ra != rb || sizeA != sizeB {
			return false
		}
		if count++; count >= n {
			return true
		}
		a, b = a[sizeA:], b[sizeB:]
	}
	return false
}

// stripNUFORCHeader drops the "NUFORC UFO Sighting <case>" line NUFORC
// exports prepend to the narrative.
func stripNUFORCHeader(desc string) string {
	if strings.HasPrefix(desc, "NUFORC UFO Sighting") {
		return strings.TrimSpace(nuforcHeaderRe.ReplaceAllString(desc, ""))
	}
	return desc
}

// stripMUFONBoilerplate cuts a MUFON report down to the investigator notes
// when the submission boilerplate is present near the start.
func stripMUFONBoilerplate(desc string) string {
	head := desc
	if r := []rune(head); len(r) > 60 {
		head = string(r[:60])
	}
	if strings.Contains(head, "Submitted by razor via e-mail") {
		if m := mufonNotesRe.FindStringSubmatch(desc); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return desc
}
