package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"well-go/internal/well"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = "You are a concise wellness coach. You answer with JSON only."

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint.
// Works with OpenAI, Ollama, LM Studio, vLLM and similar servers.
type OpenAICompleter struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

var _ well.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(baseURL, apiKey, model string, timeout time.Duration) *OpenAICompleter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAICompleter{
		client:  &fasthttp.Client{Name: "well", MaxResponseBodySize: 1 << 20},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
	}
}

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

// Complete sends prompt as a single user message and returns the first choice.
// The call is bounded by ctx's deadline, or by the configured timeout when ctx has none.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.model == "" {
		return "", errors.New("no model configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/chat/completions")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.SetBody(body)

	if err := c.client.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}

	var out chatResponse
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		if json.Unmarshal(resp.Body(), &out) == nil && out.Error != nil {
			return "", fmt.Errorf("HTTP %d: %s", status, out.Error.Message)
		}
		return "", fmt.Errorf("HTTP %d: %s", status, truncate(resp.Body(), 200))
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	timeout := c.timeout
	if timeout <= 0 {
		timeout = well.DefaultCompletionTimeout
	}
	return time.Now().Add(timeout)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
