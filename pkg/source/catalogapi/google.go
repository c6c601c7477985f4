package catalogapi

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

// The volumes API caps maxResults at 40; we never request more per page
// than the configured result limit allows.
const googleMaxPageSize = 20

type googleVolume struct {
	VolumeInfo struct {
		Title    string   `json:"title"`
		Subtitle string   `json:"subtitle"`
		Authors  []string `json:"authors"`
	} `json:"volumeInfo"`
}

type googleResponse struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

func (s *Source) searchGoogle(ctx context.Context, q query) ([]source.Candidate, error) {
	queryString := buildGoogleQuery(q)

	if cands, ok := s.cache.get(queryString); ok {
		return cands, nil
	}

	pageSize := s.pageSize()
	var items []googleVolume
	for startIndex := 0; startIndex < s.cfg.MaxResults; startIndex += pageSize {
		page, err := s.googlePage(ctx, queryString, startIndex, pageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.Items) < pageSize || len(items) >= page.TotalItems {
			break
		}
	}

	best, score := bestGoogleMatch(items, q)
	if best == nil {
		// A definitive no-match is cacheable too; it spares the ladder
		// on rescans.
		s.cache.put(queryString, nil)
		return nil, nil
	}

	cands := volumeCandidates(best, confBase+confSpan*score)
	s.cache.put(queryString, cands)
	return cands, nil
}

func (s *Source) pageSize() int {
	if s.cfg.MaxResults < googleMaxPageSize {
		return s.cfg.MaxResults
	}
	return googleMaxPageSize
}

func (s *Source) googlePage(ctx context.Context, queryString string, startIndex, pageSize int) (*googleResponse, error) {
	params := url.Values{}
	params.Set("q", queryString)
	params.Set("maxResults", fmt.Sprintf("%d", pageSize))
	if startIndex > 0 {
		params.Set("startIndex", fmt.Sprintf("%d", startIndex))
	}
	if s.cfg.APIKey != "" {
		params.Set("key", s.cfg.APIKey)
	}

	resp, err := s.get(ctx, s.cfg.GoogleBaseURL+"/volumes?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errcodes.SourceUnavailable(s.Name())
	}
	return &decoded, nil
}

func buildGoogleQuery(q query) string {
	var parts []string
	if q.title != "" {
		parts = append(parts, fmt.Sprintf("intitle:%q", q.title))
	}
	if q.author != "" {
		parts = append(parts, fmt.Sprintf("inauthor:%q", q.author))
	}
	if q.series != "" {
		parts = append(parts, fmt.Sprintf("%q", q.series))
	}
	return strings.Join(parts, " ")
}

// bestGoogleMatch scores every volume against the query and returns the
// winner with its similarity score in [0,1].
func bestGoogleMatch(items []googleVolume, q query) (*googleVolume, float64) {
	var best *googleVolume
	bestScore := 0.0
	for i := range items {
		item := &items[i]
		score := 0.0
		weight := 0.0
		if q.title != "" {
			score += 2 * similarity(q.title, item.VolumeInfo.Title)
			weight += 2
		}
		if q.author != "" && len(item.VolumeInfo.Authors) > 0 {
			score += similarity(q.author, item.VolumeInfo.Authors[0])
			weight += 1
		}
		if weight == 0 {
			continue
		}
		score /= weight
		if score > bestScore {
			best = item
			bestScore = score
		}
	}
	if bestScore < 0.5 {
		return nil, 0
	}
	return best, bestScore
}

var subtitleOrdinalRE = regexp.MustCompile(`^(.*?)[\s,]*\p{L}*\s*(\d{1,3}(?:\.\d+)?)$`)

func volumeCandidates(v *googleVolume, conf float64) []source.Candidate {
	var out []source.Candidate

	if title := normalizeTitle(v.VolumeInfo.Title); title != "" {
		out = append(out, source.Candidate{Field: mediafile.FieldTitle, Value: title, Confidence: conf})
	}
	if len(v.VolumeInfo.Authors) > 0 {
		if author := normalizeAuthor(v.VolumeInfo.Authors[0]); author != "" {
			out = append(out, source.Candidate{Field: mediafile.FieldAuthor, Value: author, Confidence: conf})
		}
	}

	// Series info, when Google carries it at all, hides in the subtitle
	// as "<series name> <ordinal>".
	if sub := strings.TrimSpace(v.VolumeInfo.Subtitle); sub != "" {
		if m := subtitleOrdinalRE.FindStringSubmatch(sub); m != nil && strings.TrimSpace(m[1]) != "" {
			out = append(out,
				source.Candidate{Field: mediafile.FieldSeries, Value: normalizeTitle(m[1]), Confidence: conf * 0.9},
				source.Candidate{Field: mediafile.FieldSeriesIndex, Value: m[2], Confidence: conf * 0.9},
			)
		}
	}

	return out
}
