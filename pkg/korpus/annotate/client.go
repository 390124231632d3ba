package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Client calls a lemmatization service. The service receives the text and the
// model name and answers with one entry per token.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxLength is the character ceiling sent to the service and enforced
	// before a request is made.
	MaxLength int

	HTTPClient *http.Client
	// Limiter throttles requests when set.
	Limiter *rate.Limiter
}

type annotateRequest struct {
	Model     string   `json:"model"`
	Text      string   `json:"text"`
	MaxLength int      `json:"max_length"`
	Disable   []string `json:"disable,omitempty"`
}

type annotateResponse struct {
	Tokens []Token `json:"tokens"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewRateLimiter returns a limiter allowing rps requests per second with the
// given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Annotate sends text to the service.
func (c *Client) Annotate(ctx context.Context, text string) ([]Token, error) {
	if c.BaseURL == "" || c.Model == "" {
		return nil, fmt.Errorf("annotate: base URL and model required: %w", internalerr.ErrInvalidConfig)
	}
	if err := checkLength(text, c.MaxLength); err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("annotate: rate limit wait: %w", err)
		}
	}

	payload, err := c.send(ctx, text)
	if err != nil {
		return nil, err
	}
	return payload.Tokens, nil
}

func (c *Client) send(ctx context.Context, text string) (*annotateResponse, error) {
	reqBody, err := json.Marshal(annotateRequest{
		Model:     c.Model,
		Text:      text,
		MaxLength: c.maxLength(),
		Disable:   []string{"parser", "ner"},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage:
		io.Copy(io.Discard, resp.Body)
		return nil, &internalerr.ResourceExhaustionError{Size: len(text), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var payload annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("annotate: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("annotate: decode response: %w", err)
	}
	if payload.Error != nil {
		switch payload.Error.Code {
		case "resource_exhausted", "out_of_memory":
			return nil, &internalerr.ResourceExhaustionError{Size: len(text), Err: errors.New(payload.Error.Message)}
		case "input_too_long":
			return nil, fmt.Errorf("annotate: %s: %w", payload.Error.Message, internalerr.ErrInputTooLong)
		}
		return nil, fmt.Errorf("annotate error: %s", payload.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("annotate: status %d", resp.StatusCode)
	}
	return &payload, nil
}

func (c *Client) maxLength() int {
	if c.MaxLength > 0 {
		return c.MaxLength
	}
	return DefaultMaxLength
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}
