package tags

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/mediafile"
)

// Confidence levels for embedded extraction. A value lifted straight from a
// tag is trusted; series info parsed out of album text and folder-name
// fallbacks are not.
const (
	confTag         = 0.9
	confSeriesText  = 0.6
	confFolderTitle = 0.35
)

// Reader aggregates embedded metadata across a candidate's member files.
type Reader struct {
	// CoverDir is where embedded cover images get extracted to.
	CoverDir string
}

func NewReader(coverDir string) *Reader {
	return &Reader{CoverDir: coverDir}
}

// Result is the candidate-level aggregation of per-file tags.
type Result struct {
	Author      mediafile.FieldValue
	Series      mediafile.FieldValue
	SeriesIndex mediafile.FieldValue
	Title       mediafile.FieldValue

	CoverPath string
	PerFile   []*mediafile.ParsedMetadata
	// Errors holds per-file extraction failures. The result is still
	// usable; failed members simply contributed nothing.
	Errors []error
}

// Extract reads tags from every member file and aggregates them by majority
// vote, ties broken by play order. A corrupt member is skipped, not fatal.
func (r *Reader) Extract(ctx context.Context, cand *book.Candidate) *Result {
	log := logger.FromContext(ctx).Data(logger.Data{"candidate": cand.Key})

	res := &Result{
		Author:      mediafile.Unresolved(),
		Series:      mediafile.Unresolved(),
		SeriesIndex: mediafile.Unresolved(),
		Title:       mediafile.Unresolved(),
	}

	for _, path := range cand.Files {
		meta, err := Read(path)
		if err != nil {
			log.Warn("member extraction failed", logger.Data{"path": path, "err": err.Error()})
			res.Errors = append(res.Errors, err)
			continue
		}
		res.PerFile = append(res.PerFile, meta)
	}

	if author := majorityVote(res.PerFile, func(m *mediafile.ParsedMetadata) string { return m.Author }); author != "" {
		res.Author = mediafile.FieldValue{Value: author, Source: mediafile.SourceMetadata, Confidence: confTag}
	}

	if series := majorityVote(res.PerFile, func(m *mediafile.ParsedMetadata) string { return m.Series }); series != "" {
		res.Series = mediafile.FieldValue{Value: series, Source: mediafile.SourceMetadata, Confidence: confSeriesText}
		for _, m := range res.PerFile {
			if strings.EqualFold(m.Series, series) && m.SeriesIndex != "" {
				res.SeriesIndex = mediafile.FieldValue{Value: m.SeriesIndex, Source: mediafile.SourceMetadata, Confidence: confSeriesText}
				break
			}
		}
	}

	res.Title = r.deriveTitle(cand, res.PerFile)
	res.CoverPath = r.extractCover(ctx, cand, res.PerFile)

	return res
}

// deriveTitle prefers the most specific tag shared across members: the
// album tag names the work even when per-file title tags name chapters. The
// folder name is the last resort and is flagged as such.
func (r *Reader) deriveTitle(cand *book.Candidate, perFile []*mediafile.ParsedMetadata) mediafile.FieldValue {
	if album := majorityVote(perFile, func(m *mediafile.ParsedMetadata) string { return m.Album }); album != "" {
		return mediafile.FieldValue{Value: album, Source: mediafile.SourceMetadata, Confidence: confTag}
	}
	if len(perFile) == 1 && perFile[0].Title != "" {
		return mediafile.FieldValue{Value: perFile[0].Title, Source: mediafile.SourceMetadata, Confidence: confTag}
	}
	if title := unanimous(perFile, func(m *mediafile.ParsedMetadata) string { return m.Title }); title != "" {
		return mediafile.FieldValue{Value: title, Source: mediafile.SourceMetadata, Confidence: confTag}
	}
	if name := cand.FolderName(); name != "" && cand.Pattern != book.PatternSingleFile {
		return mediafile.FieldValue{Value: name, Source: mediafile.SourceHeuristic, Confidence: confFolderTitle}
	}
	return mediafile.Unresolved()
}

// extractCover writes the first embedded cover to the cover cache, or falls
// back to electing a loose image from the candidate's directory.
func (r *Reader) extractCover(ctx context.Context, cand *book.Candidate, perFile []*mediafile.ParsedMetadata) string {
	log := logger.FromContext(ctx)

	for _, m := range perFile {
		if len(m.CoverData) == 0 {
			continue
		}
		ext := m.CoverExtension()
		if ext == "" {
			continue
		}
		if err := os.MkdirAll(r.CoverDir, 0o755); err != nil {
			log.Err(err).Error("can't create cover cache dir")
			break
		}
		path := filepath.Join(r.CoverDir, cand.ID+ext)
		if err := os.WriteFile(path, m.CoverData, 0o644); err != nil {
			log.Err(err).Error("can't write extracted cover")
			break
		}
		return path
	}

	return chooseLooseCover(cand.ImageFiles, cand.FolderName())
}

// chooseLooseCover elects one of the loose images: a name implying a cover
// wins, then a name matching the folder, then the first by name.
func chooseLooseCover(images []string, folderName string) string {
	if len(images) == 0 {
		return ""
	}
	sorted := append([]string(nil), images...)
	sort.Strings(sorted)

	for _, img := range sorted {
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(img), filepath.Ext(img)))
		if strings.Contains(stem, "cover") || strings.Contains(stem, "folder") {
			return img
		}
	}
	for _, img := range sorted {
		stem := strings.TrimSuffix(filepath.Base(img), filepath.Ext(img))
		if strings.EqualFold(stem, folderName) {
			return img
		}
	}
	return sorted[0]
}

// majorityVote returns the most common nonempty value, compared
// case-insensitively, with ties broken by first appearance in play order.
func majorityVote(perFile []*mediafile.ParsedMetadata, get func(*mediafile.ParsedMetadata) string) string {
	counts := map[string]int{}
	display := map[string]string{}
	order := []string{}
	for _, m := range perFile {
		v := strings.TrimSpace(get(m))
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			display[k] = v
		}
		counts[k]++
	}
	best := ""
	bestCount := 0
	for _, k := range order {
		if counts[k] > bestCount {
			best = display[k]
			bestCount = counts[k]
		}
	}
	return best
}

// unanimous returns the value only when every member that has one agrees.
func unanimous(perFile []*mediafile.ParsedMetadata, get func(*mediafile.ParsedMetadata) string) string {
	value := ""
	for _, m := range perFile {
		v := strings.TrimSpace(get(m))
		if v == "" {
			continue
		}
		if value == "" {
			value = v
			continue
		}
		if !strings.EqualFold(value, v) {
			return ""
		}
	}
	return value
}

// Apply copies the aggregation onto an entity's field slots and cover.
func Apply(e *book.Entity, res *Result) {
	if res.Author.Resolved() {
		e.Author = res.Author
	}
	if res.Series.Resolved() {
		e.Series = res.Series
	}
	if res.SeriesIndex.Resolved() {
		e.SeriesIndex = res.SeriesIndex
	}
	if res.Title.Resolved() {
		e.Title = res.Title
	}
	if res.CoverPath != "" {
		e.CoverImagePath = res.CoverPath
	}
}
