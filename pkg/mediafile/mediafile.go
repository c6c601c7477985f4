package mediafile

import (
	"fmt"
	"time"
)

// FieldValue is a resolved value for one canonical field. SeriesIndex values
// are stored in their decimal string form so the persisted document stays
// uniform across fields.
type FieldValue struct {
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Unresolved returns the empty slot every entity field starts from.
func Unresolved() FieldValue {
	return FieldValue{Source: SourceUnresolved}
}

// Resolved reports whether the field holds an actual value.
func (f FieldValue) Resolved() bool {
	return f.Source != SourceUnresolved && f.Value != ""
}

func (f FieldValue) String() string {
	if !f.Resolved() {
		return "(unresolved)"
	}
	return fmt.Sprintf("%s [%s %.2f]", f.Value, f.Source, f.Confidence)
}

// ParsedMetadata is what the embedded-metadata reader extracts from a single
// audio container, before aggregation across a candidate's member files.
type ParsedMetadata struct {
	Title       string
	Album       string
	Author      string
	Series      string
	SeriesIndex string

	CoverMimeType string
	CoverData     []byte

	// Duration and BitrateBps are probed from the container itself (M4B
	// only) and carried for display; they take no part in resolution.
	Duration   time.Duration
	BitrateBps int
}

// WorkTitle returns the title that best names the whole work: audiobook
// rips routinely put the book name in the album tag and a chapter name in
// the title tag.
func (m *ParsedMetadata) WorkTitle() string {
	if m.Album != "" {
		return m.Album
	}
	return m.Title
}

func (m *ParsedMetadata) CoverExtension() string {
	ext := ""
	switch m.CoverMimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return ext
}
