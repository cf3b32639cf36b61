package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jholhewres/personabot/pkg/personabot/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.APIConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.7,
		ImageModel:  "dall-e-3",
		ImageSize:   "1024x1024",
	}, nil)
}

func TestComplete(t *testing.T) {
	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"D'oh!"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`))
	})

	messages := []Message{
		{Role: "system", Content: "You are Homer Simpson."},
		{Role: "user", Name: "JohnDoe", Content: "hello"},
	}
	text, err := client.Complete(context.Background(), messages)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "D'oh!" {
		t.Errorf("text = %q, want D'oh!", text)
	}

	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.MaxTokens != 500 {
		t.Errorf("max_tokens = %d, want 500", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Name != "JohnDoe" {
		t.Errorf("messages not forwarded intact: %+v", gotReq.Messages)
	}
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error should carry the API message, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream blew up"))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for non-JSON 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status, got %v", err)
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	client := NewClient(config.APIConfig{}, nil)
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestGenerateImage(t *testing.T) {
	var gotReq imageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %q, want /images/generations", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"data":[{"url":"https://img.example/result.png"}]}`))
	})

	url, err := client.GenerateImage(context.Background(), "a dog on the moon")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if url != "https://img.example/result.png" {
		t.Errorf("url = %q", url)
	}
	if gotReq.Model != "dall-e-3" || gotReq.N != 1 || gotReq.Size != "1024x1024" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Prompt != "a dog on the moon" {
		t.Errorf("prompt = %q", gotReq.Prompt)
	}
}

func TestGenerateImageNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	if _, err := client.GenerateImage(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty data")
	}
}
