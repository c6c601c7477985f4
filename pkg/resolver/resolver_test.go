package resolver

import (
	"context"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource counts its calls and replays a canned proposal batch.
type fakeSource struct {
	name  string
	cands []source.Candidate
	err   error
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Propose(_ context.Context, _ map[string]string, _ source.Hints) ([]source.Candidate, error) {
	s.calls++
	return s.cands, s.err
}

func testContext() context.Context {
	return logger.New().WithContext(context.Background())
}

func fullyTaggedEntity() *book.Entity {
	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	for _, field := range mediafile.CanonicalFields {
		e.SetField(field, mediafile.FieldValue{Value: "v", Source: mediafile.SourceMetadata, Confidence: 0.9})
	}
	return e
}

func TestResolveSkipsSourcesWhenNothingMissing(t *testing.T) {
	src := &fakeSource{name: mediafile.SourceCatalogAPI}
	r := New(0.8, src)

	e := fullyTaggedEntity()
	require.NoError(t, r.Resolve(testContext(), e))
	assert.Equal(t, 0, src.calls)
}

func TestResolveFirstFillWins(t *testing.T) {
	catalog := &fakeSource{
		name: mediafile.SourceCatalogAPI,
		cands: []source.Candidate{
			{Field: mediafile.FieldAuthor, Value: "Jane Novelist", Confidence: 0.85},
		},
	}
	heuristic := &fakeSource{
		name: mediafile.SourceHeuristic,
		cands: []source.Candidate{
			{Field: mediafile.FieldAuthor, Value: "Folder Author", Confidence: 0.3},
			{Field: mediafile.FieldTitle, Value: "Folder Title", Confidence: 0.25},
		},
	}
	r := New(0.8, catalog, heuristic)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, "Jane Novelist", e.Author.Value)
	assert.Equal(t, mediafile.SourceCatalogAPI, e.Author.Source)
	// The heuristic was still queried for the fields catalog left open.
	assert.Equal(t, 1, heuristic.calls)
	assert.Equal(t, "Folder Title", e.Title.Value)
	assert.Equal(t, mediafile.SourceHeuristic, e.Title.Source)

	// The losing author proposal is audited, not silently dropped.
	require.Len(t, e.Discarded, 1)
	assert.Equal(t, "Folder Author", e.Discarded[0].Value)
	assert.Equal(t, mediafile.SourceHeuristic, e.Discarded[0].Source)
}

func TestResolveUnavailableSourceFallsThrough(t *testing.T) {
	down := &fakeSource{
		name: mediafile.SourceCatalogAPI,
		err:  errcodes.SourceUnavailable("catalog_api"),
	}
	next := &fakeSource{
		name: mediafile.SourceLanguageModel,
		cands: []source.Candidate{
			{Field: mediafile.FieldTitle, Value: "Recovered Title", Confidence: 0.55},
		},
	}
	r := New(0.8, down, next)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, 1, down.calls)
	assert.Equal(t, "Recovered Title", e.Title.Value)
	assert.Equal(t, mediafile.SourceLanguageModel, e.Title.Source)
}

func TestResolveNeverRequeriesEmbeddedTags(t *testing.T) {
	src := &fakeSource{name: mediafile.SourceCatalogAPI}
	r := New(0.8, src)

	// All four fields came from tags, one of them below threshold (series
	// parsed out of album text).
	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	e.Author = mediafile.FieldValue{Value: "Jane Novelist", Source: mediafile.SourceMetadata, Confidence: 0.9}
	e.Title = mediafile.FieldValue{Value: "The Long Haul", Source: mediafile.SourceMetadata, Confidence: 0.9}
	e.Series = mediafile.FieldValue{Value: "Tagged Series", Source: mediafile.SourceMetadata, Confidence: 0.6}
	e.SeriesIndex = mediafile.FieldValue{Value: "2", Source: mediafile.SourceMetadata, Confidence: 0.6}

	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, 0, src.calls)
	for _, field := range mediafile.CanonicalFields {
		assert.Equal(t, mediafile.SourceMetadata, e.Field(field).Source, field)
	}
}

func TestResolveKeepsStrongerSubThresholdValue(t *testing.T) {
	src := &fakeSource{
		name: mediafile.SourceCatalogAPI,
		cands: []source.Candidate{
			{Field: mediafile.FieldTitle, Value: "Weaker Guess", Confidence: 0.3},
		},
	}
	later := &fakeSource{
		name: mediafile.SourceWebSearch,
		cands: []source.Candidate{
			{Field: mediafile.FieldTitle, Value: "Later Guess", Confidence: 0.9},
		},
	}
	r := New(0.8, src, later)

	// A folder-name fallback title, sub-threshold but stronger than the
	// first proposal.
	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	e.Title = mediafile.FieldValue{Value: "Folder Title", Source: mediafile.SourceHeuristic, Confidence: 0.35}

	require.NoError(t, r.Resolve(testContext(), e))

	// The existing value outranked the weaker proposal, and the field
	// closed at the first source that answered.
	assert.Equal(t, "Folder Title", e.Title.Value)
	assert.Equal(t, mediafile.SourceHeuristic, e.Title.Source)
	require.Len(t, e.Discarded, 2)
	assert.Equal(t, "Weaker Guess", e.Discarded[0].Value)
	assert.Equal(t, "Later Guess", e.Discarded[1].Value)
}

func TestResolveReplacesSubThresholdWithStrongerProposal(t *testing.T) {
	src := &fakeSource{
		name: mediafile.SourceCatalogAPI,
		cands: []source.Candidate{
			{Field: mediafile.FieldTitle, Value: "Catalog Title", Confidence: 0.9},
		},
	}
	r := New(0.8, src)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	e.Title = mediafile.FieldValue{Value: "Folder Title", Source: mediafile.SourceHeuristic, Confidence: 0.35}

	require.NoError(t, r.Resolve(testContext(), e))
	assert.Equal(t, "Catalog Title", e.Title.Value)
	assert.Equal(t, mediafile.SourceCatalogAPI, e.Title.Source)
}

func TestResolveBatchDuplicatesKeepBest(t *testing.T) {
	src := &fakeSource{
		name: mediafile.SourceCatalogAPI,
		cands: []source.Candidate{
			{Field: mediafile.FieldTitle, Value: "Low Match", Confidence: 0.5},
			{Field: mediafile.FieldTitle, Value: "High Match", Confidence: 0.9},
		},
	}
	r := New(0.8, src)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, "High Match", e.Title.Value)
	require.Len(t, e.Discarded, 1)
	assert.Equal(t, "Low Match", e.Discarded[0].Value)
}

func TestResolveExhaustedFieldStaysUnresolved(t *testing.T) {
	empty := &fakeSource{name: mediafile.SourceWebSearch}
	r := New(0.8, empty)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, 1, empty.calls)
	for _, field := range mediafile.CanonicalFields {
		assert.False(t, e.Field(field).Resolved(), field)
	}
	assert.Equal(t, book.StatusPending, e.Status)
}

func TestResolveStopsQueryingOnceAllFieldsClose(t *testing.T) {
	all := make([]source.Candidate, 0, len(mediafile.CanonicalFields))
	for _, field := range mediafile.CanonicalFields {
		all = append(all, source.Candidate{Field: field, Value: "v-" + field, Confidence: 0.85})
	}
	first := &fakeSource{name: mediafile.SourceCatalogAPI, cands: all}
	second := &fakeSource{name: mediafile.SourceWebSearch}
	r := New(0.8, first, second)

	e := book.NewEntity(book.Candidate{ID: book.ID("x"), Key: "x"})
	require.NoError(t, r.Resolve(testContext(), e))

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}
