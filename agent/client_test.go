package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	}
}

func TestInvokeFallbackOnTransientError(t *testing.T) {
	// mock server that returns 500 for the primary model and 200 for others
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		json.NewDecoder(r.Body).Decode(&p)
		model, _ := p["model"].(string)
		if model == "primary" {
			http.Error(w, "server error", 500)
			return
		}
		json.NewEncoder(w).Encode(chatResponse("ok from " + model))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "primary", "backup")
	got, err := client.Invoke(context.Background(), "hello", "", 1, 5*time.Second)
	if err != nil {
		t.Fatalf("expected success via fallback, got err: %v", err)
	}
	if got != "ok from backup" {
		t.Fatalf("unexpected content: %v", got)
	}
}

func TestInvokePermanentError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", 401)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "primary", "backup")
	_, err := client.Invoke(context.Background(), "hi", "", 1, 5*time.Second)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent error, got: %v", err)
	}
}

func TestInvokeTransientWithoutFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", 429)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "primary", "")
	_, err := client.Invoke(context.Background(), "hi", "", 1, 5*time.Second)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got: %v", err)
	}
}

func TestInvokeSendsSystemContext(t *testing.T) {
	var gotMessages []map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Messages []map[string]interface{} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&p)
		gotMessages = p.Messages
		json.NewEncoder(w).Encode(chatResponse("fine"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "m", "")
	_, err := client.Invoke(context.Background(), "the prompt", "the system context", 1, 5*time.Second)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if len(gotMessages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(gotMessages))
	}
	if gotMessages[0]["role"] != "system" || gotMessages[0]["content"] != "the system context" {
		t.Fatalf("unexpected system message: %v", gotMessages[0])
	}
	if gotMessages[1]["role"] != "user" || gotMessages[1]["content"] != "the prompt" {
		t.Fatalf("unexpected user message: %v", gotMessages[1])
	}
}

type recordingTools struct {
	mu    sync.Mutex
	calls []string
	args  []map[string]any
}

func (r *recordingTools) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.args = append(r.args, args)
	return "tool result for " + name, nil
}

func TestInvokeExecutesToolLoop(t *testing.T) {
	// First round reports a tool call; second round returns the final text
	// once the tool result message comes back.
	round := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		round++
		if round == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{{
					"message": map[string]interface{}{
						"role": "assistant",
						"tool_calls": []map[string]interface{}{{
							"id":   "call-1",
							"type": "function",
							"function": map[string]interface{}{
								"name":      "send_email",
								"arguments": `{"to":"team@example.com"}`,
							},
						}},
					},
				}},
			})
			return
		}
		var p struct {
			Messages []map[string]interface{} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&p)
		last := p.Messages[len(p.Messages)-1]
		if last["role"] != "tool" {
			http.Error(w, "expected tool message", 400)
			return
		}
		json.NewEncoder(w).Encode(chatResponse("email sent"))
	}))
	defer ts.Close()

	tools := &recordingTools{}
	client := NewClient(ts.URL, "", "m", "")
	client.Tools = tools

	got, err := client.Invoke(context.Background(), "send the status email", "", 5, 5*time.Second)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if got != "email sent" {
		t.Fatalf("unexpected final text: %q", got)
	}
	if len(tools.calls) != 1 || tools.calls[0] != "send_email" {
		t.Fatalf("unexpected tool calls: %v", tools.calls)
	}
	if tools.args[0]["to"] != "team@example.com" {
		t.Fatalf("unexpected tool args: %v", tools.args[0])
	}
}

func TestInvokeToolLoopBounded(t *testing.T) {
	// Model keeps asking for tools forever; the loop must stop at the bound
	// and take the last text.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "still working",
					"tool_calls": []map[string]interface{}{{
						"id":   "loop",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "noop",
							"arguments": "{}",
						},
					}},
				},
			}},
		})
	}))
	defer ts.Close()

	tools := &recordingTools{}
	client := NewClient(ts.URL, "", "m", "")
	client.Tools = tools

	got, err := client.Invoke(context.Background(), "prompt", "", 3, 5*time.Second)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if got != "still working" {
		t.Fatalf("unexpected text: %q", got)
	}
	if len(tools.calls) != 3 {
		t.Fatalf("expected exactly 3 tool rounds, got %d", len(tools.calls))
	}
}
