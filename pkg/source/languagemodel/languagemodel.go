// Package languagemodel asks an OpenAI-compatible chat completions API to
// fill missing fields from raw file and folder names. It's treated as a
// low-certainty source: when no endpoint is configured, or the call fails,
// it simply proposes nothing and the cascade moves on.
package languagemodel

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/errcodes"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

const confLanguageModel = 0.55

const systemPrompt = `You are an expert librarian with vast knowledge of books, series, and authors across all genres.

Analyze the provided directory contents and partial metadata, then fill in the book's author, title, series, and series index.

IMPORTANT:
- Never replace pseudonyms with real names; keep author names exactly as provided when one is given.
- Leave a field empty if you are not reasonably sure.

Return ONLY a JSON object with the keys: author, title, series, series_index.`

type Source struct {
	cfg        config.LanguageModelConfig
	httpClient *http.Client
}

func New(cfg config.LanguageModelConfig) *Source {
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (s *Source) Name() string {
	return mediafile.SourceLanguageModel
}

// Configured reports whether a backend is wired up at all.
func (s *Source) Configured() bool {
	return s.cfg.BaseURL != "" && s.cfg.Model != ""
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *Source) Propose(ctx context.Context, known map[string]string, hints source.Hints) ([]source.Candidate, error) {
	if !s.Configured() {
		return nil, nil
	}

	content, err := s.complete(ctx, buildUserPrompt(known, hints))
	if err != nil {
		return nil, err
	}

	return parseProposals(content, known), nil
}

func (s *Source) complete(ctx context.Context, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", errcodes.SourceUnavailable(s.Name())
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errcodes.SourceUnavailable(s.Name())
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errcodes.SourceUnavailable(s.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errcodes.SourceUnavailable(s.Name())
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errcodes.SourceUnavailable(s.Name())
	}
	if len(decoded.Choices) == 0 {
		return "", errcodes.SourceUnavailable(s.Name())
	}
	return decoded.Choices[0].Message.Content, nil
}

func buildUserPrompt(known map[string]string, hints source.Hints) string {
	var b strings.Builder
	b.WriteString("DIRECTORY CONTENTS:\n")
	fmt.Fprintf(&b, "Path: %s\n", hints.RootPath)
	b.WriteString("Files:\n")
	for _, f := range hints.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	b.WriteString("\nCURRENT METADATA:\n")
	for _, field := range mediafile.CanonicalFields {
		fmt.Fprintf(&b, "%s: %s\n", field, known[field])
	}

	b.WriteString("\nBased on the directory contents and current metadata, provide the complete book information.")
	return b.String()
}

// parseProposals reads the model's JSON answer, tolerating a numeric
// series_index and ignoring fields that are empty or already known.
func parseProposals(content string, known map[string]string) []source.Candidate {
	var answer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &answer); err != nil {
		return nil
	}

	var out []source.Candidate
	for _, field := range mediafile.CanonicalFields {
		raw, ok := answer[field]
		if !ok || known[field] != "" {
			continue
		}
		value := rawToString(raw)
		if value == "" || strings.EqualFold(value, "unknown") {
			continue
		}
		out = append(out, source.Candidate{Field: field, Value: value, Confidence: confLanguageModel})
	}
	return out
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}
