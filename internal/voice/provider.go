package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/pkg/httpclient"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// ProviderInterface defines the realtime voice provider operations
type ProviderInterface interface {
	GetSignedURL(ctx context.Context) (string, error)
}

// Provider talks to the conversational voice vendor's REST API. The realtime
// audio itself flows over the websocket bridge, not through here.
type Provider struct {
	httpClient httpclient.Client
	cfg        config.VoiceConfig
}

// NewProvider creates a new voice provider client
func NewProvider(cfg config.VoiceConfig, httpClient httpclient.Client) *Provider {
	return &Provider{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// GetSignedURL obtains a short-lived realtime URL bound to the configured
// agent. The URL embeds its own auth, so it is safe to hand to the browser.
func (p *Provider) GetSignedURL(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get_signed_url?agent_id=%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.QueryEscape(p.cfg.AgentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build signed url request: %w", err)
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		logger.LogAPICall("voice", "get_signed_url", "error", duration, zap.Error(err))
		return "", fmt.Errorf("signed url request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read signed url response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.LogAPICall("voice", "get_signed_url", "error", duration, zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("signed url returned status %d", resp.StatusCode)
	}

	var parsed signedURLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode signed url response: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", fmt.Errorf("signed url response was empty")
	}

	logger.LogAPICall("voice", "get_signed_url", "success", duration)
	return parsed.SignedURL, nil
}
