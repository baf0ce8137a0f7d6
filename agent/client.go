package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

var (
	ErrPermanent = errors.New("permanent error")
	ErrTransient = errors.New("transient error")
)

// ToolExecutor executes a named tool reported by the model and returns its
// text result. internal/mcp.ClientWrapper satisfies this.
type ToolExecutor interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint. A transient
// failure of the primary model is retried once against FallbackModel.
type Client struct {
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	HTTP          *http.Client

	// Tools, when set, enables the bounded tool-call loop.
	Tools ToolExecutor
}

func NewClient(baseURL, apiKey, model, fallbackModel string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000/v1"
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        apiKey,
		Model:         model,
		FallbackModel: fallbackModel,
		MaxTokens:     512,
		Temperature:   0.7,
		HTTP:          &http.Client{Timeout: 20 * time.Second},
	}
}

type message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Invoke sends prompt with the given system context and returns the model's
// final text. Tool calls reported by the model are executed through Tools and
// fed back, at most maxToolIterations rounds; leftover tool calls after the
// bound are dropped and the last text wins.
func (c *Client) Invoke(ctx context.Context, prompt, systemContext string, maxToolIterations int, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if maxToolIterations <= 0 {
		maxToolIterations = 1
	}

	msgs := []message{}
	if systemContext != "" {
		msgs = append(msgs, message{Role: "system", Content: systemContext})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	for iter := 0; iter < maxToolIterations; iter++ {
		out, err := c.chatOnce(ctx, msgs)
		if err != nil {
			return "", err
		}
		if len(out.ToolCalls) == 0 || c.Tools == nil {
			return out.Content, nil
		}
		msgs = append(msgs, out)
		for _, tc := range out.ToolCalls {
			var args map[string]any
			if tc.Function.Arguments != "" {
				if jerr := json.Unmarshal([]byte(tc.Function.Arguments), &args); jerr != nil {
					logging.Warnw("agent: bad tool arguments", "tool", tc.Function.Name, "err", jerr)
				}
			}
			result, terr := c.Tools.CallTool(ctx, tc.Function.Name, args)
			if terr != nil {
				logging.Warnw("agent: tool call failed", "tool", tc.Function.Name, "err", terr)
				result = fmt.Sprintf("tool error: %v", terr)
			}
			msgs = append(msgs, message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	// tool budget exhausted; one final call without executing further tools
	out, err := c.chatOnce(ctx, msgs)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) chatOnce(ctx context.Context, msgs []message) (message, error) {
	out, err := c.call(ctx, c.Model, msgs)
	if err != nil && errors.Is(err, ErrTransient) && c.FallbackModel != "" && c.FallbackModel != c.Model {
		time.Sleep(250 * time.Millisecond)
		logging.Warnw("agent: primary model failed, trying fallback",
			"model", c.Model, "fallback", c.FallbackModel, "err", err)
		return c.call(ctx, c.FallbackModel, msgs)
	}
	return out, err
}

func (c *Client) call(ctx context.Context, model string, msgs []message) (message, error) {
	if model == "" {
		model = "local"
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	payload := map[string]interface{}{
		"model":       model,
		"messages":    msgs,
		"max_tokens":  maxTokens,
		"temperature": c.Temperature,
	}
	bodyBytes, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	httpReq, rerr := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(bodyBytes)))
	if rerr != nil {
		return message{}, fmt.Errorf("%w: %v", ErrPermanent, rerr)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out struct {
			Choices []struct {
				Message message `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return message{}, fmt.Errorf("%w: decode error: %v", ErrTransient, err)
		}
		if len(out.Choices) == 0 {
			return message{}, fmt.Errorf("%w: empty choices", ErrTransient)
		}
		return out.Choices[0].Message, nil
	}

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return message{}, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}
	return message{}, fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
}
