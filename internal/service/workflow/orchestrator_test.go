package workflow

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"sync"
	"strings"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/client"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/handler"
	mcpHandler "github.com/riteshshukladev/MCP-Agent-for-X/internal/handler/mcp"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/post"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/ai"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/cache"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/capability"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/session"
)

type fixedCache struct {
	snapshot post.Snapshot
	err      error
}

func (c *fixedCache) RefreshIfStale(context.Context) (cache.RefreshResult, error) {
	return cache.RefreshResult{Count: len(c.snapshot)}, c.err
}

func (c *fixedCache) Read() post.Snapshot { return c.snapshot }

type capturePublisher struct {
	mu    sync.Mutex
	texts []string
}

func (p *capturePublisher) Publish(_ context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return "1001", nil
}

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// recordingTransport answers every request with text/err and keeps the last conversation.
type recordingTransport struct {
	text  string
	err   error
	calls int
	last  []chat.Message
}

func (r *recordingTransport) Generate(_ context.Context, messages []chat.Message, _ ai.Options) (string, error) {
	r.calls++
	r.last = messages
	return r.text, r.err
}

func startGateway(t *testing.T, c capability.PostCache, p capability.Publisher) *mcpclient.Client {
	t.Helper()

	registry := capability.NewRegistry()
	if err := capability.NewPostCapabilities(c, p).Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	sessions := session.NewManager()
	srv := httptest.NewServer(handler.NewRouter(sessions, mcpHandler.New(sessions, mcpHandler.NewServer(registry))))
	t.Cleanup(func() {
		sessions.CloseAll()
		srv.Close()
	})

	gw, err := client.Connect(t.Context(), srv.URL+"/sse")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestRunPublishesGeneratedPost(t *testing.T) {
	publisher := &capturePublisher{}
	gw := startGateway(t, &fixedCache{snapshot: post.Snapshot{{ID: "9", Text: "hello"}}}, publisher)
	transport := &recordingTransport{text: "  Great post about open standards!\n"}

	report, err := NewOrchestrator(gw, ai.NewGenerator(transport, ai.DefaultMaxRetries)).Run(context.Background(), "open standards")
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}

	wantSteps := []string{StepFetch, StepPrompt, StepGenerate, StepPost}
	if !reflect.DeepEqual(report.Steps, wantSteps) {
		t.Fatalf("steps = %v, want %v", report.Steps, wantSteps)
	}
	if got := publisher.published(); len(got) != 1 || got[0] != "Great post about open standards!" {
		t.Fatalf("published %v", got)
	}
	if report.CacheMessage != "Cache validation successful. Found 1 cached tweets." {
		t.Fatalf("unexpected cache message %q", report.CacheMessage)
	}
	if report.PostMessage != "Successfully posted tweet ID: 1001" {
		t.Fatalf("unexpected post message %q", report.PostMessage)
	}

	if len(transport.last) != 2 || transport.last[1].Role != chat.RoleUser || transport.last[1].Text != "Topic: open standards" {
		t.Fatalf("unexpected conversation %+v", transport.last)
	}
	if !strings.Contains(transport.last[0].Text, `- "hello"`) {
		t.Fatalf("instructions lost the style example: %q", transport.last[0].Text)
	}
}

func TestRunAbortsWhenGenerationFails(t *testing.T) {
	publisher := &capturePublisher{}
	gw := startGateway(t, &fixedCache{}, publisher)
	transport := &recordingTransport{err: errors.New("boom")}

	report, err := NewOrchestrator(gw, ai.NewGenerator(transport, 1)).Run(context.Background(), "x")
	if !errors.Is(err, ErrGenerateFailed) {
		t.Fatalf("expected ErrGenerateFailed, got %v", err)
	}
	if transport.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", transport.calls)
	}
	if len(publisher.published()) != 0 {
		t.Fatal("failure text must never be published")
	}
	if report.Steps[len(report.Steps)-1] != StepGenerate {
		t.Fatalf("unexpected steps %v", report.Steps)
	}
}

func TestRunAbortsOnEmptyText(t *testing.T) {
	publisher := &capturePublisher{}
	gw := startGateway(t, &fixedCache{}, publisher)

	_, err := NewOrchestrator(gw, ai.NewGenerator(&recordingTransport{text: " \n "}, 0)).Run(context.Background(), "x")
	if !errors.Is(err, ErrEmptyPost) {
		t.Fatalf("expected ErrEmptyPost, got %v", err)
	}
	if len(publisher.published()) != 0 {
		t.Fatal("empty text must not be published")
	}
}

func TestRunAbortsWhenFetchReportsFailure(t *testing.T) {
	publisher := &capturePublisher{}
	gw := startGateway(t, &fixedCache{err: errors.New("rate limited")}, publisher)
	transport := &recordingTransport{text: "never"}

	report, err := NewOrchestrator(gw, ai.NewGenerator(transport, 0)).Run(context.Background(), "x")
	if !errors.Is(err, ErrActionFailed) {
		t.Fatalf("expected ErrActionFailed, got %v", err)
	}
	if report.CacheMessage != "Error fetching tweets: rate limited" {
		t.Fatalf("unexpected cache message %q", report.CacheMessage)
	}
	if transport.calls != 0 || len(publisher.published()) != 0 {
		t.Fatal("later steps must not run")
	}
}

type brokenGateway struct{}

func (brokenGateway) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return nil, errors.New("connection refused")
}

func (brokenGateway) CallTool(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	panic("unexpected call")
}

func (brokenGateway) GetPrompt(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	panic("unexpected call")
}

func TestRunStopsOnTransportError(t *testing.T) {
	report, err := NewOrchestrator(brokenGateway{}, ai.NewGenerator(&recordingTransport{}, 0)).Run(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(report.Steps) != 0 || len(report.Tools) != 0 {
		t.Fatalf("nothing should be recorded, got %+v", report)
	}
}
