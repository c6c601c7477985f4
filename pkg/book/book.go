package book

import (
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/shishobooks/seiri/pkg/mediafile"
)

// Folder patterns the grouper can classify a candidate as.
const (
	PatternSingleFile      = "single_file"
	PatternChapteredFolder = "chaptered_folder"
	PatternMultiBookFolder = "multi_book_folder"
	PatternAuthorBook      = "author_folder_book"
)

// Approval statuses. Resolution never touches these; only an explicit
// approve/reject does.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

func ValidStatus(status string) bool {
	return status == StatusPending || status == StatusApproved || status == StatusRejected
}

// idNamespace is the fixed UUIDv5 namespace for entity IDs. Never change
// this: IDs derived from it key saved approval decisions across rescans.
var idNamespace = uuid.MustParse("9f2c1a44-7b92-4f60-8e3d-6c5a0d9b1e27")

// ID derives a stable entity identifier from a candidate key path. The same
// key always yields the same ID, so a rescan of an unchanged tree lines up
// with previously saved decisions.
func ID(key string) string {
	return uuid.NewSHA1(idNamespace, []byte(filepath.ToSlash(key))).String()
}

// Candidate is a grouped set of files believed to constitute one book,
// before field resolution.
type Candidate struct {
	// ID is derived from Key via the fixed namespace; see ID().
	ID string
	// Key is the path (relative to the scanned root) that identifies the
	// candidate: the file for single-file works, the directory for
	// chaptered folders, directory plus shared stem for multi-book groups.
	Key string
	// RootPath is the absolute directory (or file, for single-file works)
	// the candidate lives at.
	RootPath string
	// Files are the member audio files in play order.
	Files []string
	// ImageFiles are loose images found alongside the audio, candidates
	// for the cover.
	ImageFiles []string

	Pattern string
	// Confidence is how sure the grouper is about the classification, not
	// about any field value.
	Confidence float64

	// AuthorHint carries the enclosing author-folder name, when rule 3
	// applied. Low-trust: downstream sources may contradict it.
	AuthorHint string
	// SeriesHint carries the containing folder name for multi-book
	// siblings, where the folder plausibly names the series.
	SeriesHint string
}

// FolderName returns the base name of the directory the candidate sits in.
func (c *Candidate) FolderName() string {
	if c.Pattern == PatternSingleFile {
		return filepath.Base(filepath.Dir(c.RootPath))
	}
	return filepath.Base(c.RootPath)
}

// Entity is a candidate plus its resolved canonical fields, cover reference,
// and approval status. This is the unit the approval workflow sees.
type Entity struct {
	Candidate Candidate

	Author      mediafile.FieldValue
	Series      mediafile.FieldValue
	SeriesIndex mediafile.FieldValue
	Title       mediafile.FieldValue

	CoverImagePath string
	Status         string

	// Discarded holds alternative values the resolver saw but didn't
	// keep, for audit. Not persisted.
	Discarded []DiscardedValue
}

// DiscardedValue records a losing proposal for audit purposes.
type DiscardedValue struct {
	Field      string
	Value      string
	Source     string
	Confidence float64
}

// NewEntity wraps a candidate with empty field slots and a pending status.
func NewEntity(cand Candidate) *Entity {
	return &Entity{
		Candidate:   cand,
		Author:      mediafile.Unresolved(),
		Series:      mediafile.Unresolved(),
		SeriesIndex: mediafile.Unresolved(),
		Title:       mediafile.Unresolved(),
		Status:      StatusPending,
	}
}

// Field returns the slot for the named canonical field.
func (e *Entity) Field(name string) mediafile.FieldValue {
	switch name {
	case mediafile.FieldAuthor:
		return e.Author
	case mediafile.FieldSeries:
		return e.Series
	case mediafile.FieldSeriesIndex:
		return e.SeriesIndex
	case mediafile.FieldTitle:
		return e.Title
	}
	return mediafile.Unresolved()
}

// SetField replaces the slot for the named canonical field. A resolution
// pass either leaves a slot untouched or replaces it entirely.
func (e *Entity) SetField(name string, v mediafile.FieldValue) {
	switch name {
	case mediafile.FieldAuthor:
		e.Author = v
	case mediafile.FieldSeries:
		e.Series = v
	case mediafile.FieldSeriesIndex:
		e.SeriesIndex = v
	case mediafile.FieldTitle:
		e.Title = v
	}
}

// KnownFields returns the resolved field values by name, the hint set
// adapters build queries from.
func (e *Entity) KnownFields() map[string]string {
	known := map[string]string{}
	for _, name := range mediafile.CanonicalFields {
		if f := e.Field(name); f.Resolved() {
			known[name] = f.Value
		}
	}
	return known
}

// SortEntities orders entities by their candidate key for stable listing.
func SortEntities(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Candidate.Key < entities[j].Candidate.Key
	})
}
