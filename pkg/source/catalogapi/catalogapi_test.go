package catalogapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return logger.New().WithContext(context.Background())
}

func testConfig(t *testing.T, googleURL, openLibraryURL string) config.CatalogConfig {
	t.Helper()
	return config.CatalogConfig{
		GoogleBaseURL:      googleURL,
		OpenLibraryBaseURL: openLibraryURL,
		TimeoutSeconds:     5,
		MaxResults:         10,
		CachePath:          filepath.Join(t.TempDir(), "api_cache.json"),
		CacheTTLHours:      24,
	}
}

// emptyOpenLibrary answers every search with no documents.
func emptyOpenLibrary() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"docs": []}`))
	}))
}

func TestProposeOpenLibraryExactMatch(t *testing.T) {
	ol := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		w.Write([]byte(`{"docs": [
			{"title": "Project Hail Mary", "author_name": ["Andy Weir"]},
			{"title": "Project Hail Mary: Study Guide", "author_name": ["Someone Else"]}
		]}`))
	}))
	defer ol.Close()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("google should not be queried when openlibrary matches")
	}))
	defer google.Close()

	s := New(testConfig(t, google.URL, ol.URL))
	known := map[string]string{mediafile.FieldTitle: "Project Hail Mary"}

	cands, err := s.Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)

	byField := candidatesByField(cands)
	assert.Equal(t, "Project Hail Mary", byField[mediafile.FieldTitle].Value)
	assert.Equal(t, "Andy Weir", byField[mediafile.FieldAuthor].Value)
}

func TestProposeNarrowsQueriesProgressively(t *testing.T) {
	ol := emptyOpenLibrary()
	defer ol.Close()

	var queries []string
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)
		if len(queries) < 3 {
			w.Write([]byte(`{"totalItems": 0, "items": []}`))
			return
		}
		w.Write([]byte(`{"totalItems": 1, "items": [
			{"volumeInfo": {"title": "The Blade Itself", "authors": ["Joe Abercrombie"]}}
		]}`))
	}))
	defer google.Close()

	s := New(testConfig(t, google.URL, ol.URL))
	known := map[string]string{
		mediafile.FieldTitle:  "The Blade Itself: A Novel",
		mediafile.FieldAuthor: "Joe Abercrombie",
		mediafile.FieldSeries: "The First Law",
	}

	cands, err := s.Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	// Full query, then without the series, then with the subtitle
	// stripped.
	require.Len(t, queries, 3)
	assert.Contains(t, queries[0], `"The First Law"`)
	assert.NotContains(t, queries[1], "First Law")
	assert.Contains(t, queries[1], "A Novel")
	assert.NotContains(t, queries[2], "A Novel")

	byField := candidatesByField(cands)
	assert.Equal(t, "The Blade Itself", byField[mediafile.FieldTitle].Value)
	assert.Equal(t, "Joe Abercrombie", byField[mediafile.FieldAuthor].Value)
}

func TestProposeSeriesFromSubtitle(t *testing.T) {
	ol := emptyOpenLibrary()
	defer ol.Close()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"totalItems": 1, "items": [
			{"volumeInfo": {"title": "Ghost of the Shadowfort", "subtitle": "The Bladeborn Saga, Book 2", "authors": ["T.C. Edge"]}}
		]}`))
	}))
	defer google.Close()

	s := New(testConfig(t, google.URL, ol.URL))
	known := map[string]string{mediafile.FieldTitle: "Ghost of the Shadowfort"}

	cands, err := s.Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)

	byField := candidatesByField(cands)
	assert.Equal(t, "The Bladeborn Saga", byField[mediafile.FieldSeries].Value)
	assert.Equal(t, "2", byField[mediafile.FieldSeriesIndex].Value)
}

func TestProposeNoUsableFields(t *testing.T) {
	s := New(testConfig(t, "http://unused.invalid", "http://unused.invalid"))
	cands, err := s.Propose(testContext(), nil, source.Hints{})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestProposeAllBackendsDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	s := New(testConfig(t, down.URL, down.URL))
	known := map[string]string{mediafile.FieldTitle: "Anything"}

	_, err := s.Propose(testContext(), known, source.Hints{})
	require.Error(t, err)
	assert.True(t, errcodes.IsCode(err, "source_unavailable"))
}

func TestProposeCachesResults(t *testing.T) {
	ol := emptyOpenLibrary()
	defer ol.Close()

	googleHits := 0
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		googleHits++
		w.Write([]byte(`{"totalItems": 1, "items": [
			{"volumeInfo": {"title": "Cached Title", "authors": ["Cached Author"]}}
		]}`))
	}))
	defer google.Close()

	cfg := testConfig(t, google.URL, ol.URL)
	known := map[string]string{mediafile.FieldTitle: "Cached Title"}

	first, err := New(cfg).Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)

	// A second source over the same cache path answers from disk.
	second, err := New(cfg).Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)

	assert.Equal(t, 1, googleHits)
	assert.Equal(t, first, second)
}

func TestProposeRespectsConfiguredResultCap(t *testing.T) {
	ol := emptyOpenLibrary()
	defer ol.Close()

	var maxResults []string
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		maxResults = append(maxResults, r.URL.Query().Get("maxResults"))
		w.Write([]byte(`{"totalItems": 1, "items": [
			{"volumeInfo": {"title": "Capped Title", "authors": ["Capped Author"]}}
		]}`))
	}))
	defer google.Close()

	cfg := testConfig(t, google.URL, ol.URL)
	cfg.MaxResults = 5
	known := map[string]string{mediafile.FieldTitle: "Capped Title"}

	_, err := New(cfg).Propose(testContext(), known, source.Hints{})
	require.NoError(t, err)

	require.NotEmpty(t, maxResults)
	for _, m := range maxResults {
		assert.Equal(t, "5", m)
	}
}

func candidatesByField(cands []source.Candidate) map[string]source.Candidate {
	out := map[string]source.Candidate{}
	for _, c := range cands {
		if _, ok := out[c.Field]; !ok {
			out[c.Field] = c
		}
	}
	return out
}

func TestNarrowQueries(t *testing.T) {
	full := query{title: "A Title: Subtitle", author: "An Author", series: "A Series"}
	ladder := narrowQueries(full)

	require.Len(t, ladder, 4)
	assert.Equal(t, full, ladder[0])
	assert.Equal(t, query{title: "A Title: Subtitle", author: "An Author"}, ladder[1])
	assert.Equal(t, query{title: "A Title", author: "An Author"}, ladder[2])
	assert.Equal(t, query{title: "A Title: Subtitle"}, ladder[3])
}

func TestNarrowQueriesDedupes(t *testing.T) {
	ladder := narrowQueries(query{title: "Plain Title"})
	require.Len(t, ladder, 1)
}

func TestStripSubtitle(t *testing.T) {
	assert.Equal(t, "The Blade Itself", stripSubtitle("The Blade Itself: A Novel"))
	assert.Equal(t, "Wont Fix This", stripSubtitle(`Won't "Fix" This!`))
	assert.Equal(t, "No Change", stripSubtitle("No Change"))
}

func TestNormalizeAuthor(t *testing.T) {
	assert.Equal(t, "Brandon Sanderson", normalizeAuthor("BRANDON SANDERSON"))
	assert.Equal(t, "Brandon Sanderson", normalizeAuthor("brandon sanderson"))
	// Deliberate mixed casing stays as-is.
	assert.Equal(t, "N.K. Jemisin", normalizeAuthor("N.K. Jemisin"))
	// Whitespace collapses either way.
	assert.Equal(t, "Brandon Sanderson", normalizeAuthor(" Brandon  Sanderson "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("The Blade Itself", "the blade itself"))
	assert.Greater(t, similarity("The Blade Itself", "The Blade Itself: A Novel"), 0.5)
	assert.Equal(t, 0.0, similarity("Alpha", "Omega"))
}
