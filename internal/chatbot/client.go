// Package chatbot is the HTTP client of the external inference service.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// maxResponseSize bounds the reply body read into memory.
const maxResponseSize = 1 << 20

// Client talks to the chatbot service.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient builds a client for cfg.ChatbotURL. A zero ChatbotTimeout means
// no client-side timeout beyond the request context.
func NewClient(cfg config.Chatbot) *Client {
	return &Client{
		apiURL:     strings.TrimRight(cfg.ChatbotURL, "/"),
		httpClient: &http.Client{Timeout: cfg.ChatbotTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Send forwards message on behalf of senderID and returns the service's JSON
// reply unchanged. Transport failures, non-2xx answers and non-JSON bodies are
// reported as models.ErrUpstream. There is no retry.
func (c *Client) Send(ctx context.Context, senderID, message string) (json.RawMessage, error) {
	const op = "chatbot.Send"

	req, err := c.newRequest(ctx, http.MethodPost, "/chat", ChatRequest{Message: message, SenderID: senderID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w: unexpected status %s", op, models.ErrUpstream, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w: reply is not json", op, models.ErrUpstream)
	}
	return json.RawMessage(body), nil
}
