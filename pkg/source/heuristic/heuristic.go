// Package heuristic guesses fields from positional patterns in file and
// folder names. The patterns are structural (an ordinal set off by a
// separator, a trailing parenthetical) rather than matches on any fixed
// vocabulary, so naming schemes in any language get the same treatment.
package heuristic

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

// The least trusted source in the cascade.
const (
	confPattern    = 0.4
	confSeriesHint = 0.35
	confAuthorHint = 0.3
	confNameTitle  = 0.25
)

var (
	// A short leading token, an ordinal, a separator, then the real text:
	// "Book 3-An Echo of Titans", "01 - Prologue", "Vol 2: Title".
	ordinalThenTextRE = regexp.MustCompile(`^(?:\p{L}{1,12}\s+)?(\d{1,3}(?:\.\d+)?)\s*[-–—_.:]\s*(.+)$`)
	// "Series Name #3".
	hashOrdinalRE = regexp.MustCompile(`^(.+?)\s*#(\d{1,3}(?:\.\d+)?)$`)
	// "Series Name, <word> 3".
	commaOrdinalRE = regexp.MustCompile(`^(.+?),\s*\p{L}+\s+(\d{1,3}(?:\.\d+)?)$`)
	// "Series Name (<word> 3)" or "Series Name (3)".
	parenOrdinalRE = regexp.MustCompile(`^(.+?)\s*\(\s*(?:\p{L}+\s+)?(\d{1,3}(?:\.\d+)?)\s*\)$`)

	bracketedRE = regexp.MustCompile(`[\[{].*?[\]}]`)
)

type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) Name() string {
	return mediafile.SourceHeuristic
}

func (s *Source) Propose(_ context.Context, known map[string]string, hints source.Hints) ([]source.Candidate, error) {
	name := workName(hints)
	var out []source.Candidate

	propose := func(field, value string, conf float64) {
		if value == "" || known[field] != "" {
			return
		}
		for _, c := range out {
			if c.Field == field {
				return
			}
		}
		out = append(out, source.Candidate{Field: field, Value: value, Confidence: conf})
	}

	if m := ordinalThenTextRE.FindStringSubmatch(name); m != nil {
		title := strings.TrimSpace(m[2])
		// Rips sometimes repeat the series name at the tail of each
		// title; the folder name tells us when to peel it off.
		if hints.SeriesHint != "" {
			title = trimTrailingName(title, hints.SeriesHint)
		}
		propose(mediafile.FieldSeriesIndex, normalizeOrdinal(m[1]), confPattern)
		propose(mediafile.FieldTitle, title, confPattern)
	}

	for _, re := range []*regexp.Regexp{hashOrdinalRE, parenOrdinalRE, commaOrdinalRE} {
		if m := re.FindStringSubmatch(name); m != nil {
			propose(mediafile.FieldSeries, strings.TrimSpace(m[1]), confPattern)
			propose(mediafile.FieldSeriesIndex, normalizeOrdinal(m[2]), confPattern)
			break
		}
	}

	if hints.SeriesHint != "" {
		propose(mediafile.FieldSeries, cleanName(hints.SeriesHint), confSeriesHint)
	}
	if hints.AuthorHint != "" {
		propose(mediafile.FieldAuthor, cleanName(hints.AuthorHint), confAuthorHint)
	}
	propose(mediafile.FieldTitle, cleanName(name), confNameTitle)

	return out, nil
}

// workName picks the name most likely to describe the whole work: the file
// name for per-file works, the folder name for chaptered ones.
func workName(hints source.Hints) string {
	if len(hints.Files) > 0 && hints.Pattern != "" && hints.Pattern != book.PatternChapteredFolder && hints.Pattern != book.PatternAuthorBook {
		return strings.TrimSuffix(hints.Files[0], filepath.Ext(hints.Files[0]))
	}
	if hints.FolderName != "" {
		return hints.FolderName
	}
	if len(hints.Files) > 0 {
		return strings.TrimSuffix(hints.Files[0], filepath.Ext(hints.Files[0]))
	}
	return ""
}

// normalizeOrdinal drops zero padding so "07" and "7" read as the same
// index.
func normalizeOrdinal(s string) string {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func cleanName(name string) string {
	name = bracketedRE.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " -_.")
}

func trimTrailingName(text, name string) string {
	lt, ln := strings.ToLower(text), strings.ToLower(name)
	if len(lt) > len(ln) && strings.HasSuffix(lt, ln) {
		trimmed := strings.Trim(text[:len(text)-len(ln)], " -_.,:")
		if trimmed != "" {
			return trimmed
		}
	}
	return text
}
