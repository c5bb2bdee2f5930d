// Package airtable mirrors form responses into an Airtable table and runs
// the Airtable OAuth flow.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"formbuilder-go/internal/models"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// ErrNotConfigured is returned when the API key, base or table is missing
var ErrNotConfigured = errors.New("airtable: not configured")

// Config for the records API
type Config struct {
	BaseURL   string
	APIKey    string
	BaseID    string
	TableName string
	Timeout   time.Duration

	// MaxTries bounds attempts per request, including the first.
	MaxTries uint
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	// MaxRetryAfter caps the wait requested by a 429 Retry-After header.
	MaxRetryAfter time.Duration
	// MaxElapsed bounds the whole call, retries included.
	MaxElapsed time.Duration
}

type Client struct {
	config Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 2 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 10 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether records can be created
func (c *Client) Configured() bool {
	return c != nil && c.config.APIKey != "" && c.config.BaseID != "" && c.config.TableName != ""
}

type createRequest struct {
	Fields map[string]string `json:"fields"`
	// Typecast lets Airtable coerce into single-line/long-text columns.
	Typecast bool `json:"typecast"`
}

type createResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateRecord stores one response as a row with a FormID text column and
// the answers JSON in a Responses long-text column. It returns the record id.
func (c *Client) CreateRecord(ctx context.Context, formID string, answers models.AnswerMap) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if answers == nil {
		answers = models.AnswerMap{}
	}

	encoded, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	body, err := json.Marshal(createRequest{
		Fields: map[string]string{
			"FormID":    formID,
			"Responses": string(encoded),
		},
		Typecast: true,
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.config.BaseURL, url.PathEscape(c.config.BaseID), url.PathEscape(c.config.TableName))

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.config.InitialInterval

	return backoff.Retry(ctx, func() (string, error) {
		return c.postRecord(ctx, endpoint, body)
	}, backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.config.MaxTries),
		backoff.WithMaxElapsedTime(c.config.MaxElapsed))
}

// postRecord makes one attempt. Rate limits and server errors are retried,
// any other failure is permanent.
func (c *Client) postRecord(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			wait := min(time.Duration(secs)*time.Second, c.config.MaxRetryAfter)
			return "", &backoff.RetryAfterError{Duration: wait}
		}
		return "", fmt.Errorf("airtable API returned status: %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("airtable API returned status: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Type != "" {
			return "", backoff.Permanent(fmt.Errorf("airtable API returned status %d: %s: %s",
				resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message))
		}
		return "", backoff.Permanent(fmt.Errorf("airtable API returned status: %d", resp.StatusCode))
	}

	var created createResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode airtable response: %w", err))
	}
	if created.ID == "" {
		return "", backoff.Permanent(errors.New("airtable response has no record id"))
	}
	return created.ID, nil
}
