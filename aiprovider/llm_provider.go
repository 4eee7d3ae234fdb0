package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codetop/reviewsched/domain"
)

// LLMProvider calls an OpenAI-compatible chat-completions endpoint to
// score each candidate problem for a user, asking the model to return
// a JSON object of problemID -> relevance score in [0, 1]. Grounded on
// the teacher's OpenAIClient.makeRequest request/response shape
// (bearer auth, JSON body, choices[0].message.content parsing), adapted
// from free-text generation to a structured scoring prompt.
type LLMProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLLMProvider builds a Provider backed by an OpenAI-compatible chat
// completions API. baseURL should include the version prefix (e.g.
// "https://api.openai.com/v1").
func NewLLMProvider(name, apiKey, baseURL, model string) *LLMProvider {
	return &LLMProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *LLMProvider) Name() string { return p.name }

func (p *LLMProvider) Rank(ctx context.Context, req RankingRequest) (RankingResponse, error) {
	if len(req.CandidateIDs) == 0 {
		return RankingResponse{Provider: p.name, Scores: map[string]float64{}}, nil
	}

	prompt := buildScoringPrompt(req)
	payload := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You score candidate practice problems for spaced-repetition review by relevance to the user's current context. Respond with a single JSON object mapping problem IDs to scores between 0 and 1, nothing else."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.0,
	}

	raw, err := p.makeRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return RankingResponse{}, domain.NewError("LLMProvider.Rank", domain.KindTransient, req.UserID, err)
	}

	scores, err := parseScores(raw, req.CandidateIDs)
	if err != nil {
		return RankingResponse{}, domain.NewError("LLMProvider.Rank", domain.KindProviderError, req.UserID, err)
	}

	return RankingResponse{Provider: p.name, Scores: scores}, nil
}

func buildScoringPrompt(req RankingRequest) string {
	var b strings.Builder
	b.WriteString("Candidate problem IDs: ")
	b.WriteString(strings.Join(req.CandidateIDs, ", "))
	if len(req.Context) > 0 {
		b.WriteString("\nUser context: ")
		ctxJSON, _ := json.Marshal(req.Context)
		b.Write(ctxJSON)
	}
	return b.String()
}

func (p *LLMProvider) makeRequest(ctx context.Context, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func parseScores(response map[string]interface{}, candidateIDs []string) (map[string]float64, error) {
	choices, ok := response["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return nil, fmt.Errorf("invalid response structure: no choices")
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid choice structure")
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid message structure")
	}
	content, ok := message["content"].(string)
	if !ok {
		return nil, fmt.Errorf("message content is not a string")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("model did not return valid JSON scores: %w", err)
	}

	scores := make(map[string]float64, len(candidateIDs))
	for _, id := range candidateIDs {
		v, ok := raw[id]
		if !ok {
			scores[id] = 0.5
			continue
		}
		switch n := v.(type) {
		case float64:
			scores[id] = clampScore(n)
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				scores[id] = 0.5
				continue
			}
			scores[id] = clampScore(f)
		default:
			scores[id] = 0.5
		}
	}
	return scores, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
