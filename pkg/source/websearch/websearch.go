// Package websearch mines web search result titles and snippets for
// plausible book fields. The signal is noisy, so everything it proposes is
// capped well below what the catalog adapter returns.
package websearch

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

const (
	confTitleAuthor = 0.5
	confSeries      = 0.45
)

var (
	// Book listings commonly render as "Title (Series Name, #3)".
	seriesParenRE = regexp.MustCompile(`^(.+?)\s*\(\s*(.+?),\s*#?(\d{1,3}(?:\.\d+)?)\s*\)`)
	// "Title by Author Name" with the author chunk kept short enough to
	// be a name rather than a sentence.
	byAuthorRE = regexp.MustCompile(`^(.{2,120}?)\s+by\s+([\p{L}.'\- ]{2,60})$`)
)

type Source struct {
	cfg        config.WebSearchConfig
	httpClient *http.Client
}

func New(cfg config.WebSearchConfig) *Source {
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (s *Source) Name() string {
	return mediafile.SourceWebSearch
}

func (s *Source) Propose(ctx context.Context, known map[string]string, hints source.Hints) ([]source.Candidate, error) {
	q := buildQuery(known, hints)
	if q == "" {
		return nil, nil
	}

	titles, err := s.resultTitles(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []source.Candidate
	propose := func(field, value string, conf float64) {
		value = strings.TrimSpace(value)
		if value == "" || known[field] != "" {
			return
		}
		for _, c := range out {
			if c.Field == field {
				return
			}
		}
		out = append(out, source.Candidate{Field: field, Value: value, Confidence: conf})
	}

	for _, title := range titles {
		if m := seriesParenRE.FindStringSubmatch(title); m != nil {
			propose(mediafile.FieldTitle, m[1], confTitleAuthor)
			propose(mediafile.FieldSeries, m[2], confSeries)
			propose(mediafile.FieldSeriesIndex, m[3], confSeries)
			continue
		}
		if m := byAuthorRE.FindStringSubmatch(title); m != nil {
			propose(mediafile.FieldTitle, m[1], confTitleAuthor)
			propose(mediafile.FieldAuthor, m[2], confTitleAuthor)
		}
	}

	return out, nil
}

// buildQuery assembles the search terms from whatever we know, falling back
// to the raw folder name plus "audiobook" to bias results toward books.
func buildQuery(known map[string]string, hints source.Hints) string {
	terms := []string{}
	for _, field := range []string{mediafile.FieldTitle, mediafile.FieldAuthor, mediafile.FieldSeries} {
		if v := known[field]; v != "" {
			terms = append(terms, v)
		}
	}
	if len(terms) == 0 {
		if hints.FolderName == "" {
			return ""
		}
		terms = append(terms, hints.FolderName)
	}
	terms = append(terms, "audiobook")
	return strings.Join(terms, " ")
}

func (s *Source) resultTitles(ctx context.Context, q string) ([]string, error) {
	params := url.Values{}
	params.Set("q", q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; seiri)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errcodes.SourceUnavailable(s.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}

	var titles []string
	doc.Find("a.result__a, h2 a, .result__title a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			titles = append(titles, text)
		}
		return len(titles) < s.cfg.MaxResults
	})
	return titles, nil
}
