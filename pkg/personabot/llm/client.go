// Package llm implements the client for text and image generation.
// Uses the OpenAI-compatible API format, which works with OpenAI and any
// compatible endpoint configured via base_url.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/personabot/pkg/personabot/config"
)

// Client handles communication with the generation API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	imageModel  string
	imageSize   string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a client from config.
func NewClient(cfg config.APIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		imageModel:  cfg.ImageModel,
		imageSize:   cfg.ImageSize,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm"),
	}
}

// Message is one role-tagged entry of a chat completion request. Name is
// set only on user messages and must already be sanitized to the API's
// allowed character class.
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ---------- Wire Types (OpenAI-compatible) ----------

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// ---------- Public Methods ----------

// Complete sends a chat completion request and returns the generated text.
// Any failure (network, quota, malformed payload) comes back as an error;
// callers substitute their own user-facing message and never expose the
// error text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	reqID := uuid.NewString()
	start := time.Now()
	c.logger.Debug("chat completion request",
		"request_id", reqID,
		"model", c.model,
		"messages", len(messages),
	)

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var parsed chatResponse
	if err := c.post(ctx, "/chat/completions", body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}

	c.logger.Debug("chat completion response",
		"request_id", reqID,
		"duration", time.Since(start),
		"finish_reason", parsed.Choices[0].FinishReason,
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
	)

	return parsed.Choices[0].Message.Content, nil
}

// GenerateImage requests a single image for the prompt and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	reqID := uuid.NewString()
	start := time.Now()
	c.logger.Debug("image generation request", "request_id", reqID, "model", c.imageModel)

	body, err := json.Marshal(imageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   c.imageSize,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var parsed imageResponse
	if err := c.post(ctx, "/images/generations", body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", fmt.Errorf("API returned no image")
	}

	c.logger.Debug("image generation response", "request_id", reqID, "duration", time.Since(start))
	return parsed.Data[0].URL, nil
}

// post sends a JSON request and decodes the JSON response into out.
// Non-2xx responses are errors; an error body is decoded into out first so
// callers can surface the API's own message.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	// A decoded error body is reported by the caller with the API's own
	// message; plain non-200s without one are reported here.
	if resp.StatusCode != http.StatusOK && !hasAPIError(out) {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return nil
}

func hasAPIError(out any) bool {
	switch v := out.(type) {
	case *chatResponse:
		return v.Error != nil
	case *imageResponse:
		return v.Error != nil
	default:
		return false
	}
}
