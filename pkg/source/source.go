package source

import (
	"context"
	"path/filepath"

	"github.com/shishobooks/seiri/pkg/book"
)

// Candidate is one proposed value for one canonical field.
type Candidate struct {
	Field      string
	Value      string
	Confidence float64
}

// Hints is the raw, unresolved material an adapter may mine when the known
// fields aren't enough: names straight off the filesystem plus whatever the
// grouper guessed from the tree shape.
type Hints struct {
	RootPath   string
	FolderName string
	// Files are the member file base names, extension included.
	Files      []string
	Pattern    string
	AuthorHint string
	SeriesHint string
}

// HintsFor builds the hint set for a grouped candidate.
func HintsFor(cand *book.Candidate) Hints {
	files := make([]string, 0, len(cand.Files))
	for _, f := range cand.Files {
		files = append(files, filepath.Base(f))
	}
	return Hints{
		RootPath:   cand.RootPath,
		FolderName: cand.FolderName(),
		Files:      files,
		Pattern:    cand.Pattern,
		AuthorHint: cand.AuthorHint,
		SeriesHint: cand.SeriesHint,
	}
}

// Source is one strategy in the resolution cascade. Implementations degrade
// gracefully: network failure, timeout, and no-match all come back as an
// empty proposal or a source_unavailable error, never a crash, so the
// resolver can move to the next priority level.
type Source interface {
	// Name returns the provenance tag recorded on fields this source
	// fills.
	Name() string
	// Propose is called once per candidate with every field still
	// missing; it returns zero or more proposals, possibly covering only
	// some of them.
	Propose(ctx context.Context, known map[string]string, hints Hints) ([]Candidate, error)
}
