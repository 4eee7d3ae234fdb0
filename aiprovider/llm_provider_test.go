package aiprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMProvider_RankParsesScoresFromChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{
					"message": map[string]interface{}{
						"content": `{"p1": 0.9, "p2": 0.2}`,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewLLMProvider("test-llm", "test-key", srv.URL, "gpt-4")
	resp, err := p.Rank(context.Background(), RankingRequest{UserID: "u1", CandidateIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, 0.9, resp.Scores["p1"])
	assert.Equal(t, 0.2, resp.Scores["p2"])
}

func TestLLMProvider_RankMissingCandidateDefaultsToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{
					"message": map[string]interface{}{"content": `{"p1": 0.7}`},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewLLMProvider("test-llm", "test-key", srv.URL, "gpt-4")
	resp, err := p.Rank(context.Background(), RankingRequest{UserID: "u1", CandidateIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, 0.7, resp.Scores["p1"])
	assert.Equal(t, 0.5, resp.Scores["p2"])
}

func TestLLMProvider_RankUpstreamErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewLLMProvider("test-llm", "test-key", srv.URL, "gpt-4")
	_, err := p.Rank(context.Background(), RankingRequest{UserID: "u1", CandidateIDs: []string{"p1"}})
	require.Error(t, err)
}

func TestLLMProvider_RankNoCandidatesReturnsEmptyScores(t *testing.T) {
	p := NewLLMProvider("test-llm", "test-key", "http://unused.invalid", "gpt-4")
	resp, err := p.Rank(context.Background(), RankingRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Scores)
}
