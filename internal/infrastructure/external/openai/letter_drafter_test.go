package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func letterRequest() port.LetterRequest {
	return port.LetterRequest{
		CompanyName:    "Bharat Industries",
		EmployeeID:     "emp-9",
		Kind:           "Promotion",
		CurrentCTC:     "1200000",
		ProposedCTC:    "1500000",
		NewDesignation: "Senior Engineer",
		EffectiveDate:  "2026-04-01",
	}
}

func TestLetterDrafter_DraftLetter(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, "```text\nDear emp-9,\nCongratulations.\n```", &seen)

	d := NewLetterDrafter("test-key", srv.URL+"/v1", "gpt-4o-mini", nil, zap.NewNop())
	body, err := d.DraftLetter(context.Background(), letterRequest())

	require.NoError(t, err)
	assert.Equal(t, "Dear emp-9,\nCongratulations.", body)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[1].Content, "Promotion letter from Bharat Industries")
	assert.Contains(t, seen.Messages[1].Content, "New designation: Senior Engineer")
	assert.NotContains(t, seen.Messages[1].Content, "Reason for the revision")
}

func TestLetterDrafter_APIError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)

	d := NewLetterDrafter("test-key", srv.URL+"/v1", "gpt-4o-mini", nil, zap.NewNop())
	_, err := d.DraftLetter(context.Background(), letterRequest())

	assert.Error(t, err)
}

func TestLetterDrafter_EmptyReply(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ", nil)

	d := NewLetterDrafter("test-key", srv.URL+"/v1", "gpt-4o-mini", nil, zap.NewNop())
	_, err := d.DraftLetter(context.Background(), letterRequest())

	assert.Error(t, err)
}

func TestLoadPrompts_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("letter_draft:\n  system: Be brief.\n"), 0644))

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)

	assert.Equal(t, "Be brief.", prompts.LetterDraft.System)
	assert.Contains(t, prompts.LetterDraft.UserTemplate, "{{.Kind}}")
	assert.Equal(t, 900, prompts.LetterDraft.MaxTokens)
}
