package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/pkg/circuitbreaker"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/httpclient"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
	"github.com/talendro/talendro-api/pkg/retry"
)

// Message is one turn sent to the chat completions API
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ClientInterface defines the OpenAI operations used by the services
type ClientInterface interface {
	ChatCompletion(ctx context.Context, messages []Message) (string, error)
	ChatCompletionJSON(ctx context.Context, messages []Message, out any) error
}

// Client talks to the OpenAI chat completions API over plain HTTP
type Client struct {
	httpClient     httpclient.Client
	cfg            config.OpenAIConfig
	circuitBreaker *gobreaker.CircuitBreaker
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.OpenAIConfig, httpClient httpclient.Client) *Client {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("openai"))

	return &Client{
		httpClient:     httpClient,
		cfg:            cfg,
		circuitBreaker: cb,
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ChatCompletion sends a conversation and returns the assistant's reply
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.7,
	})
}

// ChatCompletionJSON sends a conversation in JSON mode and decodes the reply
// into out
func (c *Client) ChatCompletionJSON(ctx context.Context, messages []Message, out any) error {
	reply, err := c.complete(ctx, chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(reply), out); err != nil {
		return fmt.Errorf("failed to decode model json: %w", err)
	}

	return nil
}

// complete runs one request through the circuit breaker and retry stack
func (c *Client) complete(ctx context.Context, req chatCompletionRequest) (string, error) {
	reply, err := circuitbreaker.Execute(c.circuitBreaker, func() (string, error) {
		return c.doComplete(ctx, req)
	})
	if err != nil {
		if circuitbreaker.IsCircuitOpen(c.circuitBreaker) {
			return "", apperrors.Wrap(apperrors.CodeAIConnectionFailed, "AI provider unavailable", err)
		}
		return "", err
	}

	return reply, nil
}

func (c *Client) doComplete(ctx context.Context, req chatCompletionRequest) (string, error) {
	start := time.Now()
	operation := "chat_completion"

	retryCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	reply, err := retry.DoWithResult(retryCtx, retry.OpenAIConfig(), operation, func() (string, error) {
		httpReq, err := http.NewRequestWithContext(retryCtx, http.MethodPost,
			strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build chat request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeAIConnectionFailed, "chat completion request failed", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return "", fmt.Errorf("failed to read chat response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, truncate(respBody, 500))
		}

		var parsed chatCompletionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("failed to decode chat response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("chat completion error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
			return "", fmt.Errorf("chat completion returned no content")
		}

		return parsed.Choices[0].Message.Content, nil
	})

	duration := metrics.MeasureDuration(start)
	metrics.OpenAIRequestDuration.WithLabelValues(operation).Observe(duration)

	if err != nil {
		logger.LogAPICall("openai", operation, "error", duration, zap.Error(err))
		return "", err
	}
	logger.LogAPICall("openai", operation, "success", duration, zap.String("model", c.cfg.Model))

	return reply, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
