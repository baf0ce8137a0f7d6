package main

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// wsBridge adapts one accepted websocket to the MCP SDK, acting as both the
// single-use Transport and the Connection it yields.
type wsBridge struct{ conn *websocket.Conn }

func bridgeWebSocket(conn *websocket.Conn) mcp.Transport { return &wsBridge{conn: conn} }

func (b *wsBridge) Connect(ctx context.Context) (mcp.Connection, error) { return b, nil }

func (b *wsBridge) Read(ctx context.Context) (jsonrpc.Message, error) {
	defer withDeadline(ctx, b.conn.SetReadDeadline)()
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeMessage(data)
}

func (b *wsBridge) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	defer withDeadline(ctx, b.conn.SetWriteDeadline)()
	return b.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (b *wsBridge) Close() error      { return b.conn.Close() }
func (b *wsBridge) SessionID() string { return "" }

// withDeadline applies the context deadline through set and returns the
// cleanup that clears it again.
func withDeadline(ctx context.Context, set func(time.Time) error) func() {
	dl, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	_ = set(dl)
	return func() { _ = set(time.Time{}) }
}
