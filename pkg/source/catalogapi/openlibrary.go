package catalogapi

import (
	"context"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

// OpenLibrary answers are only taken on a near-exact title match, so they
// carry a fixed high confidence.
const openLibraryConf = 0.92

type openLibraryDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
}

type openLibraryResponse struct {
	Docs []openLibraryDoc `json:"docs"`
}

// searchOpenLibrary runs one strict lookup: it accepts a document only when
// the title matches exactly and, if we know the author, the author matches
// too. Fuzzier matching is Google's job on the narrowing ladder.
func (s *Source) searchOpenLibrary(ctx context.Context, q query) ([]source.Candidate, error) {
	var qparts []string
	if q.title != "" {
		qparts = append(qparts, "title:("+q.title+")")
	}
	if q.author != "" {
		qparts = append(qparts, "author:("+q.author+")")
	}

	cacheKey := "openlibrary:" + strings.Join(qparts, " AND ")
	if cands, ok := s.cache.get(cacheKey); ok {
		return cands, nil
	}

	params := url.Values{}
	params.Set("q", strings.Join(qparts, " AND "))
	params.Set("fields", "title,author_name")
	params.Set("limit", "10")

	resp, err := s.get(ctx, s.cfg.OpenLibraryBaseURL+"/search.json?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openLibraryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}

	for _, doc := range decoded.Docs {
		if !strings.EqualFold(strings.TrimSpace(doc.Title), strings.TrimSpace(q.title)) {
			continue
		}
		if q.author != "" && !containsFold(doc.AuthorName, q.author) {
			continue
		}

		cands := []source.Candidate{
			{Field: mediafile.FieldTitle, Value: normalizeTitle(doc.Title), Confidence: openLibraryConf},
		}
		if len(doc.AuthorName) > 0 {
			cands = append(cands, source.Candidate{
				Field:      mediafile.FieldAuthor,
				Value:      normalizeAuthor(doc.AuthorName[0]),
				Confidence: openLibraryConf,
			})
		}
		s.cache.put(cacheKey, cands)
		return cands, nil
	}

	s.cache.put(cacheKey, nil)
	return nil, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}
