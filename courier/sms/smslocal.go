// Package sms sends one-time codes through the SMS Local HTTP API.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agriskills/goRecovery/provider/redisidp"
)

const (
	defaultBaseURL = "https://www.smslocal.com/dev/bulkV2"
	defaultTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("sms: API key not configured")

// Client posts OTP messages (route=otp) to SMS Local.
type Client struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

var _ redisidp.OTPSender = (*Client)(nil)

// NewClient returns a client for apiKey. Empty baseURL selects the public endpoint.
func NewClient(apiKey, baseURL, sender string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendOTP texts code to phone. The gateway wants digits only, so a leading
// "+" is stripped. The code is never logged.
func (c *Client) SendOTP(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}

	body := map[string]string{
		"route":     "otp",
		"numbers":   strings.TrimPrefix(phone, "+"),
		"variables": code,
	}
	if c.Sender != "" {
		body["sender_id"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
