package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClientConfig holds connection settings for an OpenAI-compatible
// chat-completions API.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     120 * time.Second,
	}
}

// Client implements Backend against the /chat/completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client. A nil logger disables diagnostics.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// SetModel changes the model used for completions.
func (c *Client) SetModel(model string) {
	c.model = model
}

// Model returns the current model.
func (c *Client) Model() string {
	return c.model
}

type apiRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta,omitempty"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// SendBatch sends the message sequence and waits for the complete
// response.
func (c *Client) SendBatch(ctx context.Context, messages []Message) (Outcome, error) {
	// Auto-apply timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	c.logger.Debug("batch request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))

	if c.apiKey == "" {
		return Outcome{}, fmt.Errorf("API key not configured")
	}

	c.throttle()

	reqBody := apiRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	// Retry loop for rate limits.
	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return Outcome{}, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return Outcome{}, fmt.Errorf("failed to parse response: %w", err)
		}
		if apiResp.Error != nil {
			return Outcome{}, fmt.Errorf("API error: %s", apiResp.Error.Message)
		}
		if len(apiResp.Choices) == 0 {
			return Outcome{}, fmt.Errorf("no completion returned")
		}

		outcome := Outcome{Text: apiResp.Choices[0].Message.Content}
		if apiResp.Usage != nil {
			outcome.TokenCount = apiResp.Usage.TotalTokens
		}
		c.logger.Debug("batch completed",
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("tokens", outcome.TokenCount))
		return outcome, nil
	}

	return Outcome{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SendStream sends the message sequence and returns a channel of stream
// events. Deltas arrive in provider order; the channel is closed after a
// single terminal Done or Err event. Malformed fragments are skipped
// rather than aborting the stream.
func (c *Client) SendStream(ctx context.Context, messages []Message) (<-chan StreamEvent, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	events := make(chan StreamEvent, 100)

	go func() {
		defer close(events)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
			defer cancel()
		}

		startTime := time.Now()
		c.throttle()

		reqBody := apiRequest{
			Model:         c.model,
			Messages:      messages,
			MaxTokens:     c.maxTokens,
			Temperature:   c.temperature,
			Stream:        true,
			StreamOptions: &streamOptions{IncludeUsage: true},
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("failed to marshal request: %w", err)}
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("failed to create request: %w", err)}
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("request failed: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			events <- StreamEvent{Err: fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		totalTokens := 0
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var chunk apiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Malformed fragment: skip it, the stream continues.
				c.logger.Debug("skipping malformed stream fragment", zap.Error(err))
				continue
			}
			if chunk.Error != nil {
				events <- StreamEvent{Err: fmt.Errorf("API error: %s", chunk.Error.Message)}
				return
			}
			if chunk.Usage != nil {
				totalTokens = chunk.Usage.TotalTokens
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil && chunk.Choices[0].Delta.Content != "" {
				select {
				case events <- StreamEvent{Delta: chunk.Choices[0].Delta.Content}:
				case <-ctx.Done():
					events <- StreamEvent{Err: ctx.Err()}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("stream error: %w", err)}
			return
		}

		c.logger.Debug("stream completed",
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("tokens", totalTokens))
		events <- StreamEvent{Done: true, TokenCount: totalTokens}
	}()

	return events, nil
}

// throttle enforces a minimum spacing between requests.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
}
