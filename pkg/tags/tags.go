package tags

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"
	"github.com/pkg/errors"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
)

// Read extracts container-level tags from a single audio file. Unsupported
// or corrupt containers come back as an extraction error scoped to that
// file; callers keep going with the other members.
func Read(path string) (*mediafile.ParsedMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errcodes.Extraction(path), err.Error())
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, errors.Wrap(errcodes.Extraction(path), err.Error())
	}

	meta := &mediafile.ParsedMetadata{
		Title:  strings.TrimSpace(m.Title()),
		Album:  strings.TrimSpace(m.Album()),
		Author: firstName(m.Artist()),
	}

	if pic := m.Picture(); pic != nil {
		meta.CoverMimeType = pic.MIMEType
		meta.CoverData = pic.Data
	}

	// Audiobook rips often pack series info into the album or title text.
	if series, index := parseSeriesText(meta.Album); series != "" {
		meta.Series = series
		meta.SeriesIndex = index
	} else if series, index := parseSeriesText(meta.Title); series != "" {
		meta.Series = series
		meta.SeriesIndex = index
	}

	if strings.EqualFold(filepath.Ext(path), ".m4b") {
		if dur, bitrate, err := probeMP4(path); err == nil {
			meta.Duration = dur
			meta.BitrateBps = bitrate
		}
	}

	return meta, nil
}

func firstName(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ",")
	return strings.TrimSpace(parts[0])
}

// Series text patterns are positional (name, then an ordinal set off by a
// marker character), not matches on any fixed vocabulary.
var seriesTextREs = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s*#(\d+(?:\.\d+)?)$`),                      // Name #3
	regexp.MustCompile(`^(.+?)\s*,\s*(?:\p{L}+\s+)?(\d+(?:\.\d+)?)$`),     // Name, <word> 3
	regexp.MustCompile(`^(.+?)\s*\(\s*(?:\p{L}+\s+)?(\d+(?:\.\d+)?)\s*\)$`), // Name (<word> 3)
}

func parseSeriesText(text string) (string, string) {
	if text == "" {
		return "", ""
	}
	for _, re := range seriesTextREs {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), m[2]
		}
	}
	return "", ""
}
