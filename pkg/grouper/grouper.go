package grouper

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/book"
)

// Audio containers we group. Since files can carry any extension, each one
// is double-checked against the mime types we expect for it.
var extensionsToScan = map[string]map[string]struct{}{
	".m4b":  {"audio/x-m4a": {}, "video/mp4": {}, "audio/mp4": {}},
	".m4a":  {"audio/x-m4a": {}, "audio/mp4": {}},
	".mp3":  {"audio/mpeg": {}},
	".flac": {"audio/flac": {}},
	".ogg":  {"audio/ogg": {}, "application/ogg": {}},
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Classification confidence is about the folder-pattern guess, not about any
// field value. Numeric chapter suffixes are a stronger signal than merely
// lexicographic ones.
const (
	confSingleFile       = 0.95
	confChapteredNumeric = 0.9
	confChapteredLexical = 0.7
	confChapteredSingle  = 0.8
	confMultiBook        = 0.6
)

type dirEntry struct {
	path       string
	audioFiles []string
	imageFiles []string
	subdirs    []string
}

type Grouper struct{}

func New() *Grouper {
	return &Grouper{}
}

// Scan walks the tree under root and partitions every audio file into
// exactly one candidate. Rerunning on an unchanged tree reproduces the same
// candidate keys and IDs.
func (g *Grouper) Scan(ctx context.Context, root string) ([]book.Candidate, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"root": root})
	log.Info("scanning for book candidates")

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("scan root %q is not a directory", root)
	}

	dirs := map[string]*dirEntry{}

	err = filepath.WalkDir(root, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		dir := filepath.Dir(path)
		if info.IsDir() {
			if _, ok := dirs[path]; !ok {
				dirs[path] = &dirEntry{path: path}
			}
			if path != root {
				dirs[dir].subdirs = append(dirs[dir].subdirs, path)
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := imageExtensions[ext]; ok {
			dirs[dir].imageFiles = append(dirs[dir].imageFiles, path)
			return nil
		}
		expectedMimeTypes, ok := extensionsToScan[ext]
		if !ok {
			return nil
		}
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			log.Warn("can't detect the mime type of a file with a valid extension", logger.Data{"path": path, "err": err.Error()})
			return nil
		}
		if _, ok := expectedMimeTypes[mtype.String()]; !ok {
			log.Warn("mime type is not expected for extension", logger.Data{"path": path, "mimetype": mtype.String()})
			return nil
		}
		dirs[dir].audioFiles = append(dirs[dir].audioFiles, path)
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var candidates []book.Candidate

	// Audio directly in the scanned root: a lone file is its own entity
	// (rule 4); several files classify like any other audio directory.
	if rootEntry, ok := dirs[root]; ok && len(rootEntry.audioFiles) > 0 {
		sort.Strings(rootEntry.audioFiles)
		if len(rootEntry.audioFiles) == 1 {
			candidates = append(candidates, g.singleFileCandidate(root, rootEntry.audioFiles[0], rootEntry.imageFiles))
		} else {
			candidates = append(candidates, g.classifyDir(root, rootEntry)...)
		}
	}

	// Rule 3: directories with no direct audio whose children all contain
	// audio are author folders; the name propagates as a low-trust hint.
	authorHints := map[string]string{}
	for path, entry := range dirs {
		if path == root || len(entry.audioFiles) > 0 || len(entry.subdirs) == 0 {
			continue
		}
		allBooks := true
		for _, sub := range entry.subdirs {
			if child, ok := dirs[sub]; !ok || len(child.audioFiles) == 0 {
				allBooks = false
				break
			}
		}
		if allBooks {
			for _, sub := range entry.subdirs {
				authorHints[sub] = filepath.Base(path)
			}
		}
	}

	// Rules 1-2: classify each directory that holds audio directly.
	dirPaths := make([]string, 0, len(dirs))
	for path := range dirs {
		dirPaths = append(dirPaths, path)
	}
	sort.Strings(dirPaths)

	for _, path := range dirPaths {
		entry := dirs[path]
		if path == root || len(entry.audioFiles) == 0 {
			continue
		}
		sort.Strings(entry.audioFiles)
		cands := g.classifyDir(root, entry)
		if hint, ok := authorHints[path]; ok {
			for i := range cands {
				cands[i].AuthorHint = hint
				if cands[i].Pattern == book.PatternChapteredFolder {
					cands[i].Pattern = book.PatternAuthorBook
				}
			}
		}
		candidates = append(candidates, cands...)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key < candidates[j].Key })
	log.Info("grouping finished", logger.Data{"candidates": len(candidates)})
	return candidates, nil
}

func (g *Grouper) singleFileCandidate(root, path string, images []string) book.Candidate {
	key := relKey(root, path)
	return book.Candidate{
		ID:         book.ID(key),
		Key:        key,
		RootPath:   path,
		Files:      []string{path},
		ImageFiles: matchingImages(images, path),
		Pattern:    book.PatternSingleFile,
		Confidence: confSingleFile,
	}
}

// classifyDir applies the structural chaptered-vs-multi-book heuristic to
// one directory's audio files. Best effort by design; a human approves the
// result either way.
func (g *Grouper) classifyDir(root string, entry *dirEntry) []book.Candidate {
	names := make([]string, len(entry.audioFiles))
	for i, f := range entry.audioFiles {
		names[i] = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
	}

	key := relKey(root, entry.path)

	if len(entry.audioFiles) == 1 {
		return []book.Candidate{{
			ID:         book.ID(key),
			Key:        key,
			RootPath:   entry.path,
			Files:      entry.audioFiles,
			ImageFiles: entry.imageFiles,
			Pattern:    book.PatternChapteredFolder,
			Confidence: confChapteredSingle,
		}}
	}

	if pattern, conf, ok := classifySharedStem(names); ok {
		if pattern == book.PatternChapteredFolder {
			return []book.Candidate{{
				ID:         book.ID(key),
				Key:        key,
				RootPath:   entry.path,
				Files:      entry.audioFiles,
				ImageFiles: entry.imageFiles,
				Pattern:    book.PatternChapteredFolder,
				Confidence: conf,
			}}
		}
		// Shared stem but lexically distinct remainders: siblings are
		// separate works and the folder plausibly names the series.
		return g.multiBookCandidates(root, entry, conf)
	}

	// No shared stem at all: cluster by per-file stem and emit one
	// candidate per cluster.
	return g.multiBookCandidates(root, entry, confMultiBook)
}

func (g *Grouper) multiBookCandidates(root string, entry *dirEntry, conf float64) []book.Candidate {
	groups := map[string][]string{}
	order := []string{}
	for _, f := range entry.audioFiles {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		stem := stemOf(name)
		if _, ok := groups[stem]; !ok {
			order = append(order, stem)
		}
		groups[stem] = append(groups[stem], f)
	}

	seriesHint := filepath.Base(entry.path)
	candidates := make([]book.Candidate, 0, len(order))
	for _, stem := range order {
		files := groups[stem]
		var key string
		if len(files) == 1 {
			key = relKey(root, files[0])
		} else {
			key = relKey(root, entry.path) + "/" + stem
		}
		candidates = append(candidates, book.Candidate{
			ID:         book.ID(key),
			Key:        key,
			RootPath:   entry.path,
			Files:      files,
			ImageFiles: entry.imageFiles,
			Pattern:    book.PatternMultiBookFolder,
			Confidence: conf,
			SeriesHint: seriesHint,
		})
	}
	return candidates
}

func relKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// matchingImages keeps root-level images only when they plausibly belong to
// the file, to avoid attaching one loose cover to every sibling.
func matchingImages(images []string, audioPath string) []string {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath)))
	var matched []string
	for _, img := range images {
		imgStem := strings.ToLower(strings.TrimSuffix(filepath.Base(img), filepath.Ext(img)))
		if imgStem == stem {
			matched = append(matched, img)
		}
	}
	return matched
}
