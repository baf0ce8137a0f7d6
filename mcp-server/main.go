// Command mcp-server exposes meeting follow-up tools over MCP. The bot's
// agent connects here via websocket and calls these tools while reasoning
// about a turn. Tool effects are kept in memory and logged; in a real
// deployment each handler would talk to the corresponding backend.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type sendEmailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type createTaskArgs struct {
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
	Due      string `json:"due,omitempty"`
}

type takeNoteArgs struct {
	Text string `json:"text"`
}

// actionLog accumulates tool invocations for the lifetime of the process.
type actionLog struct {
	mu      sync.Mutex
	entries []string
}

func (a *actionLog) add(format string, args ...any) string {
	entry := fmt.Sprintf(format, args...)
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	n := len(a.entries)
	a.mu.Unlock()
	log.Printf("action #%d: %s", n, entry)
	return entry
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: text}}}
}

func newServer(actions *actionLog) *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "meeting-tools", Version: "1.0.0"}, nil)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "send_email",
		Description: "Send a follow-up email on behalf of the meeting",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args sendEmailArgs) (*sdk.CallToolResult, any, error) {
		if args.To == "" {
			return nil, nil, fmt.Errorf("send_email: missing recipient")
		}
		actions.add("email to %s: %s", args.To, args.Subject)
		return textResult(fmt.Sprintf("email queued for %s", args.To)), nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "create_task",
		Description: "Create an action item from the meeting",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args createTaskArgs) (*sdk.CallToolResult, any, error) {
		if args.Title == "" {
			return nil, nil, fmt.Errorf("create_task: missing title")
		}
		assignee := args.Assignee
		if assignee == "" {
			assignee = "unassigned"
		}
		actions.add("task %q for %s due %s", args.Title, assignee, args.Due)
		return textResult(fmt.Sprintf("task %q created for %s", args.Title, assignee)), nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "take_note",
		Description: "Record a note in the meeting minutes",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args takeNoteArgs) (*sdk.CallToolResult, any, error) {
		if args.Text == "" {
			return nil, nil, fmt.Errorf("take_note: missing text")
		}
		actions.add("note at %s: %s", time.Now().UTC().Format(time.RFC3339), args.Text)
		return textResult("note recorded"), nil, nil
	})

	return server
}

func main() {
	actions := &actionLog{}
	server := newServer(actions)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	upgrader := websocket.Upgrader{}
	http.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade failed: %v", err)
			return
		}
		t := bridgeWebSocket(conn)
		go func() {
			session, err := server.Connect(context.Background(), t, nil)
			if err != nil {
				log.Printf("mcp connect error: %v", err)
				conn.Close()
				return
			}
			if err := session.Wait(); err != nil {
				log.Printf("mcp session ended with error: %v", err)
			}
		}()
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "9001"
	}
	log.Printf("meeting-tools mcp server listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}
