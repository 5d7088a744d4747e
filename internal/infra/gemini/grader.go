package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"trivia-rooms/internal/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash-lite"
)

// Grader asks a Gemini-style generateContent endpoint whether a submitted
// answer is semantically equivalent to the canonical one. Callers are
// expected to wrap it with the exact-match fallback; every failure here is
// surfaced as an error.
type Grader struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

// Option tweaks the grader, mainly for tests.
type Option func(*Grader)

func WithBaseURL(url string) Option {
	return func(g *Grader) { g.baseURL = url }
}

func WithModel(model string) Option {
	return func(g *Grader) { g.model = model }
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Grader) { g.httpClient = client }
}

func NewGrader(apiKey string, opts ...Option) *Grader {
	g := &Grader{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// jsonObjectRe extracts the first JSON object from the model's free-form
// reply, which may be wrapped in markdown fences or prose.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func (g *Grader) Check(ctx context.Context, question, canonicalAnswer, submittedAnswer string) (domain.Verdict, error) {
	prompt := fmt.Sprintf(`Question: %s
Correct answer: %s
User answer: %q

Is the user's answer semantically equivalent to the correct answer? Consider
spelling variations, synonyms and different wordings with the same meaning.
Respond only with a JSON object in this format:
{
  "isCorrect": true or false,
  "confidence": number between 0 and 1,
  "explanation": "brief explanation of your reasoning"
}`, question, canonicalAnswer, submittedAnswer)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("marshal grading request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("build grading request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("grading request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Verdict{}, fmt.Errorf("grading request: unexpected status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode grading response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return domain.Verdict{}, fmt.Errorf("grading response: no candidates")
	}

	text := decoded.Candidates[0].Content.Parts[0].Text
	raw := jsonObjectRe.FindString(text)
	if raw == "" {
		return domain.Verdict{}, fmt.Errorf("grading response: no JSON verdict in %q", text)
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("parse grading verdict: %w", err)
	}
	return verdict, nil
}
