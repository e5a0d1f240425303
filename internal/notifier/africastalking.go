package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	liveBaseURL    = "https://api.africastalking.com"
	sandboxBaseURL = "https://api.sandbox.africastalking.com"
	messagingPath  = "/version1/messaging"
)

var (
	ErrNoRecipients = errors.New("no recipients given")
	ErrIncomplete   = errors.New("africa's talking configuration is incomplete")
)

// ATConfig holds Africa's Talking credentials
type ATConfig struct {
	Username string
	APIKey   string
	SenderID string // optional short code or alphanumeric id
	BaseURL  string // empty picks live or sandbox from Username
	Timeout  time.Duration
}

// ATSender sends SMS through the Africa's Talking messaging API
type ATSender struct {
	cfg      ATConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewATSender creates an ATSender
func NewATSender(cfg ATConfig, logger *zap.Logger) *ATSender {
	base := cfg.BaseURL
	if base == "" {
		base = liveBaseURL
		if cfg.Username == "sandbox" {
			base = sandboxBaseURL
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ATSender{
		cfg:      cfg,
		endpoint: strings.TrimRight(base, "/") + messagingPath,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.Named("africastalking"),
	}
}

type atResponse struct {
	SMSMessageData struct {
		Message    string        `json:"Message"`
		Recipients []atRecipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type atRecipient struct {
	Number     string `json:"number"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	MessageID  string `json:"messageId"`
	Cost       string `json:"cost"`
}

// Send posts the message to every recipient in a single API call.
// Any recipient not accepted by the gateway makes the call fail.
func (s *ATSender) Send(ctx context.Context, message string, recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	if s.cfg.Username == "" || s.cfg.APIKey == "" {
		return ErrIncomplete
	}

	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("to", strings.Join(recipients, ","))
	form.Set("message", message)
	if s.cfg.SenderID != "" {
		form.Set("from", s.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var body atResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode sms response: %w", err)
	}

	var rejected []string
	for _, r := range body.SMSMessageData.Recipients {
		if r.Status != "Success" {
			rejected = append(rejected, fmt.Sprintf("%s (%s)", r.Number, r.Status))
			continue
		}
		s.logger.Debug("SMS accepted", zap.String("to", r.Number), zap.String("message_id", r.MessageID), zap.String("cost", r.Cost))
	}
	if len(rejected) > 0 {
		return fmt.Errorf("sms rejected for %s", strings.Join(rejected, ", "))
	}
	if len(body.SMSMessageData.Recipients) == 0 {
		return fmt.Errorf("sms not accepted: %s", body.SMSMessageData.Message)
	}
	return nil
}
