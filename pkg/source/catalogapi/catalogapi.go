// Package catalogapi resolves fields against external bibliographic
// catalogs: a strict OpenLibrary lookup first, then Google Books with a
// progressively narrowed query ladder. One failed or empty query never
// short-circuits the adapter; it walks the whole ladder before reporting no
// candidates.
package catalogapi

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

// Catalog matches score between these bounds, scaled by string similarity
// to the query. The catalog outranks every other adapter, so even a weak
// match sits above websearch output.
const (
	confBase = 0.55
	confSpan = 0.4
)

type Source struct {
	cfg        config.CatalogConfig
	httpClient *http.Client
	cache      *queryCache

	mu          sync.Mutex
	lastRequest time.Time
}

func New(cfg config.CatalogConfig) *Source {
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		cache:      newQueryCache(cfg.CachePath, cfg.CacheTTL()),
	}
}

func (s *Source) Name() string {
	return mediafile.SourceCatalogAPI
}

type query struct {
	title  string
	author string
	series string
}

func (s *Source) Propose(ctx context.Context, known map[string]string, _ source.Hints) ([]source.Candidate, error) {
	log := logger.FromContext(ctx)

	full := query{
		title:  known[mediafile.FieldTitle],
		author: known[mediafile.FieldAuthor],
		series: known[mediafile.FieldSeries],
	}
	if full.title == "" && full.author == "" {
		// Nothing to query with; let the noisier sources mine the raw
		// names first.
		return nil, nil
	}

	var unavailable error

	if full.title != "" {
		cands, err := s.searchOpenLibrary(ctx, full)
		if err != nil {
			log.Warn("openlibrary lookup failed", logger.Data{"err": err.Error()})
			unavailable = err
		} else if len(cands) > 0 {
			return cands, nil
		}
	}

	for _, q := range narrowQueries(full) {
		cands, err := s.searchGoogle(ctx, q)
		if err != nil {
			log.Warn("google books lookup failed", logger.Data{"err": err.Error()})
			unavailable = err
			continue
		}
		if len(cands) > 0 {
			return cands, nil
		}
	}

	if unavailable != nil {
		return nil, unavailable
	}
	return nil, nil
}

// narrowQueries builds the retry ladder: drop the series, then strip the
// subtitle and punctuation off the title, then fall back to the title
// alone. Duplicates collapse so the ladder never repeats a query.
func narrowQueries(full query) []query {
	ladder := []query{full}
	if full.series != "" {
		ladder = append(ladder, query{title: full.title, author: full.author})
	}
	if stripped := stripSubtitle(full.title); stripped != full.title {
		ladder = append(ladder, query{title: stripped, author: full.author})
	}
	if full.title != "" && full.author != "" {
		ladder = append(ladder, query{title: full.title})
	}

	seen := map[query]struct{}{}
	out := ladder[:0]
	for _, q := range ladder {
		if q.title == "" && q.author == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

var punctRE = regexp.MustCompile(`[!?"'.,;]`)

// stripSubtitle drops everything after a colon and removes punctuation, the
// second narrowing rung.
func stripSubtitle(title string) string {
	if i := strings.Index(title, ":"); i > 0 {
		title = title[:i]
	}
	title = punctRE.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

// throttle enforces the minimum interval between catalog requests.
func (s *Source) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wait := s.cfg.MinRequestInterval() - time.Since(s.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	s.lastRequest = time.Now()
}

func (s *Source) get(ctx context.Context, url string) (*http.Response, error) {
	s.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	return resp, nil
}
