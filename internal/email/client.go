package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/pkg/httpclient"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
	"github.com/talendro/talendro-api/pkg/retry"
)

// Address is one email recipient or sender
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendRequest is one transactional email
type SendRequest struct {
	To       Address
	Subject  string
	HTML     string
	Template string // template label for metrics, not a provider template id
}

// ClientInterface defines the email operations used by the services
type ClientInterface interface {
	Send(ctx context.Context, req SendRequest) error
}

// Client delivers mail through the SendGrid v3 API
type Client struct {
	httpClient httpclient.Client
	cfg        config.EmailConfig
}

// NewClient creates a new SendGrid client
func NewClient(cfg config.EmailConfig, httpClient httpclient.Client) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// SendGrid v3 mail send wire types
type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             Address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []Address `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers one HTML email. Delivery failures never bubble into a user
// facing error path; callers treat email as best-effort and log instead.
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	if strings.TrimSpace(req.To.Email) == "" {
		return fmt.Errorf("email recipient required")
	}

	payload := mailSendRequest{
		Personalizations: []personalization{{To: []Address{req.To}}},
		From:             Address{Email: c.cfg.FromEmail, Name: c.cfg.FromName},
		Subject:          req.Subject,
		Content:          []mailContent{{Type: "text/html", Value: req.HTML}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode mail payload: %w", err)
	}

	start := time.Now()
	operation := "mail_send"

	retryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = retry.Do(retryCtx, retry.SendGridConfig(), operation, func() error {
		httpReq, err := http.NewRequestWithContext(retryCtx, http.MethodPost,
			strings.TrimRight(c.cfg.BaseURL, "/")+"/v3/mail/send", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build mail request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("mail send request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("mail send returned status %d: %s", resp.StatusCode, string(respBody))
		}

		return nil
	})

	duration := metrics.MeasureDuration(start)
	template := req.Template
	if template == "" {
		template = "generic"
	}

	if err != nil {
		logger.LogAPICall("sendgrid", operation, "error", duration, zap.Error(err), zap.String("template", template))
		metrics.EmailsSent.WithLabelValues(template, "error").Inc()
		return err
	}

	logger.LogAPICall("sendgrid", operation, "success", duration, zap.String("template", template))
	metrics.EmailsSent.WithLabelValues(template, "success").Inc()

	return nil
}
