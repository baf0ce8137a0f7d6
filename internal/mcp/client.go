package mcp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meeting-voice-lab/internal/logging"
)

// ClientWrapper provides a small helper to connect to an MCP server over
// websocket and manage the client session lifecycle.
type ClientWrapper struct {
	client          *sdk.Client
	session         *sdk.ClientSession
	keepaliveCancel context.CancelFunc
	mu              sync.Mutex
}

// NewClientWrapper creates a new wrapper with the given name/version.
func NewClientWrapper(name, version string) *ClientWrapper {
	impl := &sdk.Implementation{Name: name, Version: version}
	c := sdk.NewClient(impl, nil)
	return &ClientWrapper{client: c}
}

// ConnectWebSocket connects to the MCP server websocket endpoint and creates a session.
func (w *ClientWrapper) ConnectWebSocket(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		if u.Scheme == "http" {
			u.Scheme = "ws"
		}
		if u.Scheme == "https" {
			u.Scheme = "wss"
		}
	}
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	t := newClientWebSocketTransport(conn)
	sess, err := w.client.Connect(ctx, t, nil)
	if err != nil {
		_ = conn.Close()
		return err
	}

	w.mu.Lock()
	w.session = sess
	kaCtx, cancel := context.WithCancel(context.Background())
	if prev := w.keepaliveCancel; prev != nil {
		prev()
	}
	w.keepaliveCancel = cancel
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				_ = sess.Ping(context.Background(), nil)
			}
		}
	}()
	logging.Infow("mcp client connected", "url", rawurl)
	return nil
}

// CallTool invokes a named tool on the session and flattens the text content
// of the result into a single string.
func (w *ClientWrapper) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	w.mu.Lock()
	sess := w.session
	w.mu.Unlock()
	if sess == nil {
		return "", fmt.Errorf("mcp session not connected")
	}
	res, err := sess.CallTool(ctx, &sdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", err
	}
	out := ""
	for _, c := range res.Content {
		if text, ok := c.(*sdk.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool %s returned error: %s", name, out)
	}
	return out, nil
}

func (w *ClientWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keepaliveCancel != nil {
		w.keepaliveCancel()
		w.keepaliveCancel = nil
	}
	if w.session != nil {
		return w.session.Close()
	}
	return nil
}
