// Package approval holds resolved entities, their provenance, and the human
// approval decisions, persisted as one JSON document. Saves merge against
// the on-disk content per entity id, so partial or concurrent runs never
// silently drop another run's decisions.
package approval

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
)

type Store struct {
	path     string
	autosave bool

	mu       sync.RWMutex
	entities map[string]*book.Entity
}

// New creates a store backed by the document at path. When autosave is set,
// every status change persists immediately.
func New(path string, autosave bool) *Store {
	return &Store{
		path:     path,
		autosave: autosave,
		entities: map[string]*book.Entity{},
	}
}

// record is the persisted shape of one entity, keyed by entity id in the
// document.
type record struct {
	SourcePath     string               `json:"source_path"`
	Files          []string             `json:"files"`
	Pattern        string               `json:"pattern"`
	Author         mediafile.FieldValue `json:"author"`
	Series         mediafile.FieldValue `json:"series"`
	SeriesIndex    mediafile.FieldValue `json:"series_index"`
	Title          mediafile.FieldValue `json:"title"`
	CoverImagePath string               `json:"cover_image_path"`
	Status         string               `json:"status"`
}

// Put registers an entity, keeping any approval decision already made for
// the same id: rescans reproduce ids, not statuses.
func (s *Store) Put(e *book.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entities[e.Candidate.ID]; ok && existing.Status != book.StatusPending {
		e.Status = existing.Status
	}
	if e.Status == "" {
		e.Status = book.StatusPending
	}
	s.entities[e.Candidate.ID] = e
}

// List returns every entity, ordered by candidate key. Entities with all
// four fields unresolved list like any other.
func (s *Store) List() []*book.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*book.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	book.SortEntities(out)
	return out
}

func (s *Store) Get(id string) (*book.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, errcodes.NotFound("Entity")
	}
	return e, nil
}

// SetStatus records an approval decision. It never recomputes fields, and
// it's safe to call while a resolution batch is populating other entities.
func (s *Store) SetStatus(id, status string) error {
	if !book.ValidStatus(status) {
		return errcodes.InvalidStatus(status)
	}

	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return errcodes.NotFound("Entity")
	}
	e.Status = status
	s.mu.Unlock()

	if s.autosave {
		return s.Save()
	}
	return nil
}

// Save persists the in-memory state, merging per entity id against whatever
// is on disk right now. Another process's entities survive; ours win only
// for our own ids. On failure the in-memory state is untouched, so a retry
// is lossless.
func (s *Store) Save() error {
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrap(errcodes.Persistence("Couldn't lock the store document."), err.Error())
	}
	defer lock.Unlock()

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}

	s.mu.RLock()
	for id, e := range s.entities {
		doc[id] = toRecord(e)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(errcodes.Persistence("Couldn't encode the store document."), err.Error())
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errcodes.Persistence("Couldn't create the store directory."), err.Error())
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errcodes.Persistence("Couldn't write the store document."), err.Error())
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(errcodes.Persistence("Couldn't replace the store document."), err.Error())
	}
	return nil
}

// Load populates in-memory state from disk. Ids already in memory only
// adopt the persisted status; unknown ids materialize fully so they list
// without a rescan.
func (s *Store) Load() error {
	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range doc {
		if existing, ok := s.entities[id]; ok {
			if book.ValidStatus(rec.Status) {
				existing.Status = rec.Status
			}
			continue
		}
		s.entities[id] = fromRecord(id, rec)
	}
	return nil
}

func readDocument(path string) (map[string]record, error) {
	doc := map[string]record{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, errors.Wrap(errcodes.Persistence("Couldn't read the store document."), err.Error())
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errcodes.Persistence("The store document is malformed."), err.Error())
	}
	return doc, nil
}

func toRecord(e *book.Entity) record {
	return record{
		SourcePath:     e.Candidate.RootPath,
		Files:          e.Candidate.Files,
		Pattern:        e.Candidate.Pattern,
		Author:         e.Author,
		Series:         e.Series,
		SeriesIndex:    e.SeriesIndex,
		Title:          e.Title,
		CoverImagePath: e.CoverImagePath,
		Status:         e.Status,
	}
}

func fromRecord(id string, rec record) *book.Entity {
	status := rec.Status
	if !book.ValidStatus(status) {
		status = book.StatusPending
	}
	return &book.Entity{
		Candidate: book.Candidate{
			ID:       id,
			Key:      rec.SourcePath,
			RootPath: rec.SourcePath,
			Files:    rec.Files,
			Pattern:  rec.Pattern,
		},
		Author:         orUnresolved(rec.Author),
		Series:         orUnresolved(rec.Series),
		SeriesIndex:    orUnresolved(rec.SeriesIndex),
		Title:          orUnresolved(rec.Title),
		CoverImagePath: rec.CoverImagePath,
		Status:         status,
	}
}

func orUnresolved(f mediafile.FieldValue) mediafile.FieldValue {
	if f.Source == "" {
		return mediafile.Unresolved()
	}
	return f
}
