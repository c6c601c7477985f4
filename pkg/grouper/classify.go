package grouper

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shishobooks/seiri/pkg/book"
)

var (
	leadingOrdinalRE  = regexp.MustCompile(`^(\d{1,4}(?:\.\d+)?)(.*)$`)
	trailingOrdinalRE = regexp.MustCompile(`[\s\-_.]*\(?\d{1,4}(?:\.\d+)?\)?$`)
)

const separatorCutset = " -_.:()[]"

// classifySharedStem decides between one chaptered work and several sibling
// works for files that share a naming stem. ok is false when the names share
// no usable stem at all and the caller should fall back to per-stem
// clustering.
//
// The rule is structural, not lexical: a common prefix whose trailing tokens
// are a strictly increasing sequence reads as chapters of one work, while
// per-file text that stays distinct beyond the numbering reads as separate
// works. This is a tunable best-effort heuristic, not a guarantee.
func classifySharedStem(names []string) (string, float64, bool) {
	prefix := longestCommonPrefix(names)
	suffixes := make([]string, len(names))
	for i, name := range names {
		suffixes[i] = strings.TrimLeft(name[len(prefix):], separatorCutset)
	}

	if ordinals, remainders, ok := splitOrdinals(suffixes); ok {
		if distinctRemainders(remainders) {
			return book.PatternMultiBookFolder, confMultiBook, true
		}
		// Unpadded numbering walks out of order lexicographically
		// ("Chapter 10" before "Chapter 9"), so strictness is checked
		// on the numerically sorted sequence.
		sort.Float64s(ordinals)
		if strictlyIncreasing(ordinals) {
			return book.PatternChapteredFolder, confChapteredNumeric, true
		}
		// Repeated ordinals with identical remainders is not a
		// chapter sequence we trust.
		return book.PatternMultiBookFolder, confMultiBook, true
	}

	// No ordinal tokens. A non-numeric shared stem with short, unique,
	// single-token suffixes (disc A, disc B, ...) still reads as one work.
	if strings.Trim(prefix, separatorCutset+"0123456789") != "" && singleTokenSuffixes(suffixes) && uniqueStrings(suffixes) {
		return book.PatternChapteredFolder, confChapteredLexical, true
	}

	return "", 0, false
}

// splitOrdinals parses a leading ordinal off every suffix. ok is false
// unless all of them carry one.
func splitOrdinals(suffixes []string) ([]float64, []string, bool) {
	ordinals := make([]float64, len(suffixes))
	remainders := make([]string, len(suffixes))
	for i, s := range suffixes {
		m := leadingOrdinalRE.FindStringSubmatch(s)
		if m == nil {
			return nil, nil, false
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, nil, false
		}
		ordinals[i] = n
		remainders[i] = strings.Trim(m[2], separatorCutset)
	}
	return ordinals, remainders, true
}

// distinctRemainders reports whether the text after the numbering differs
// between files, the signal that these are different titles rather than
// chapter labels.
func distinctRemainders(remainders []string) bool {
	seen := map[string]struct{}{}
	for _, r := range remainders {
		if r == "" {
			continue
		}
		seen[strings.ToLower(r)] = struct{}{}
	}
	return len(seen) >= 2
}

func strictlyIncreasing(ordinals []float64) bool {
	for i := 1; i < len(ordinals); i++ {
		if ordinals[i] <= ordinals[i-1] {
			return false
		}
	}
	return true
}

func singleTokenSuffixes(suffixes []string) bool {
	for _, s := range suffixes {
		if s == "" || strings.ContainsAny(s, " \t") {
			return false
		}
	}
	return true
}

func uniqueStrings(values []string) bool {
	seen := map[string]struct{}{}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

func longestCommonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

// stemOf strips one trailing ordinal group so that siblings like
// "Something 1" and "Something 2" cluster into one work while fully distinct
// names stay apart.
func stemOf(name string) string {
	stem := strings.Trim(trailingOrdinalRE.ReplaceAllString(name, ""), separatorCutset)
	if stem == "" {
		return name
	}
	return stem
}
