// Package llm calls the language generation service used by the study dialogue.
package llm

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

	"github.com/Elyes-Bali/UniProfs-UI/app/metrics"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

const (
	openaiAPIURL = "https://api.openai.com/v1/chat/completions"
	maxErrorBody = 4 << 10
)

var ErrEmptyReply = errors.New("empty completion")

// Client is a stateless chat-completions client. Every call carries the
// full dialogue history.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
	metrics *metrics.Metrics
}

// NewClient creates an OpenAI client. An empty baseURL uses the public API.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = openaiAPIURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		metrics: metrics.Get(),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func roleFor(r models.TurnRole) string {
	switch r {
	case models.TurnSystem:
		return "system"
	case models.TurnTutor:
		return "assistant"
	default:
		return "user"
	}
}

// Generate returns the trimmed text of the next tutor turn.
func (c *Client) Generate(ctx context.Context, turns []models.Turn) (reply string, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveLLM(metrics.Outcome(err), time.Since(start)) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, chatMessage{Role: roleFor(t.Role), Content: t.Content})
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("openai %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("openai %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply = strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
