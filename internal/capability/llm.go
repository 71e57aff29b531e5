package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/scribelab/scribe/config"
)

// Tier selects which backing model serves a generation call. Tier has no
// effect on the retry contract.
type Tier string

const (
	// TierFast routes to the cost-optimized model.
	TierFast Tier = "fast"
	// TierQuality routes to the quality-optimized model.
	TierQuality Tier = "quality"
)

// GenerateRequest describes one text-generation call.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64 // used when > 0, otherwise the client default
	MaxTokens   int     // used when > 0, otherwise the client default
	Tier        Tier
}

// Generator is the text-generation capability consumed by the agents.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	fastModel    string
	qualityModel string
	temperature  float64
	maxTokens    int
	client       *http.Client
	retry        Policy
	logger       *log.Logger
}

// NewOpenAIClient builds a generation client from config.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		fastModel:    cfg.FastModel,
		qualityModel: cfg.QualityModel,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		client:       &http.Client{Timeout: timeout},
		retry:        Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay},
		logger:       log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one chat completion under the client's retry policy.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := c.fastModel
	if req.Tier == TierQuality {
		model = c.qualityModel
	}
	temperature := c.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encoding generation request: %w", err)
	}

	var text string
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		out, callErr := c.call(ctx, body)
		if callErr != nil {
			c.logger.Printf("generation attempt failed (model=%s): %v", model, callErr)
			return callErr
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	return text, nil
}

func (c *OpenAIClient) call(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat completions status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decoding chat completions response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("chat completions status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("chat completions status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
