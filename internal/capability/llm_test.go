package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scribelab/scribe/config"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		FastModel:    "fast-model",
		QualityModel: "quality-model",
		Temperature:  0.7,
		MaxTokens:    256,
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
	}
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encoding reply: %v", err)
	}
}

func TestGenerateSelectsModelByTier(t *testing.T) {
	var gotModel atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotModel.Store(body.Model)
		chatReply(t, w, "hello")
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))

	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Tier: TierFast}); err != nil {
		t.Fatalf("fast tier: %v", err)
	}
	if got := gotModel.Load(); got != "fast-model" {
		t.Fatalf("expected fast-model, got %v", got)
	}

	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Tier: TierQuality}); err != nil {
		t.Fatalf("quality tier: %v", err)
	}
	if got := gotModel.Load(); got != "quality-model" {
		t.Fatalf("expected quality-model, got %v", got)
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		chatReply(t, w, "recovered")
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))
	out, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("unexpected output %q", out)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
}

func TestGenerateExhaustionSurfacesLastFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit exceeded"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("expected last failure message in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected attempt count in error, got %v", err)
	}
}

func TestGenerateSendsSystemMessage(t *testing.T) {
	var roles atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		var got []string
		for _, m := range body.Messages {
			got = append(got, m.Role)
		}
		roles.Store(strings.Join(got, ","))
		chatReply(t, w, "ok")
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))
	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", System: "be terse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := roles.Load(); got != "system,user" {
		t.Fatalf("expected system,user roles, got %v", got)
	}
}
