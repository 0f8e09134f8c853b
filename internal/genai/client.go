// internal/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/errors"
	commonhttp "deal-assistant/internal/common/http"
	"deal-assistant/internal/common/logger"
)

const systemPrompt = "You are a helpful CRM assistant inside a web app. " +
	"You help a sales user create and manage deals. " +
	"You are inside a step-based flow but the user should not see that. " +
	"Keep replies short, clear, and conversational. " +
	"Do not mention prompts, tools, APIs, or OpenRouter."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg     config.LLMConfig
	http    *commonhttp.Client
	timeout time.Duration
	logger  logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		cfg:     cfg,
		http:    commonhttp.NewClient(timeout),
		timeout: timeout,
		logger:  log.With(map[string]interface{}{"component": "genai"}),
	}
}

// Model identifies the generator for cache keys.
func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) GenerateReply(ctx context.Context, instruction, draftContext string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: draftContext + "\n\n" + instruction},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", errors.NewGenerationTimeoutError(c.timeout)
			}
		}

		text, retry, err := c.call(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", errors.NewGenerationTimeoutError(c.timeout)
		}
		if !retry {
			break
		}
		c.logger.Warn("Generation attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", errors.NewGenerationFailedError(lastErr)
}

// call makes one request. retry reports whether another attempt may help.
func (c *Client) call(ctx context.Context, body []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteName != "" {
		req.Header.Set("X-Title", c.cfg.SiteName)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode error: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}
