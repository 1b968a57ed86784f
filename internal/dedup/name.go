package dedup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Legal-entity noise stripped before comparison: Indonesian company
// forms (PT, CV, UD), storefront words (Toko, Jasa) and the usual
// English suffixes, with or without a trailing period.
var (
	entityTokens = regexp.MustCompile(`\b(?:pt|cv|ud|toko|jasa|llc|inc|ltd)\.?\b`)
	possessive   = regexp.MustCompile(`'s\b`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9\s]`)
)

// foldDiacritics strips combining marks so "Café Renovasi" and
// "Cafe Renovasi" normalize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases a business name, strips legal-entity tokens,
// possessives and non-alphanumeric characters, and collapses whitespace.
// Punctuation is dropped rather than replaced, so hyphenated words join
// ("Bali-Construction" -> "baliconstruction"); duplicate detection
// depends on that behavior staying put.
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	if folded, _, err := transform.String(foldDiacritics, n); err == nil {
		n = folded
	}
	n = entityTokens.ReplaceAllString(n, "")
	n = possessive.ReplaceAllString(n, "")
	n = nonAlnum.ReplaceAllString(n, "")
	return strings.Join(strings.Fields(n), " ")
}

// NameSimilarity scores two business names in [0,1]. Names are
// normalized first; equal normalized forms score 1.0, except that two
// empty names carry no signal and score 0.0. Otherwise the score is the
// matching-blocks ratio 2M/T over the normalized strings.
func NameSimilarity(a, b string) float64 {
	na := NormalizeName(a)
	nb := NormalizeName(b)

	if na == "" && nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	return sequenceRatio([]rune(na), []rune(nb))
}

// sequenceRatio computes the classic diff similarity ratio: twice the
// total matched length over the combined length.
func sequenceRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0.0
	}

	matched := 0
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		ai, bi, n := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if n == 0 {
			continue
		}
		matched += n
		queue = append(queue,
			span{s.alo, ai, s.blo, bi},
			span{ai + n, s.ahi, bi + n, s.bhi},
		)
	}

	return 2.0 * float64(matched) / float64(total)
}

// longestMatch finds the longest block where a[alo:ahi] and b[blo:bhi]
// agree, preferring the earliest block on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	b2j := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
