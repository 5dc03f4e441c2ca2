// Package workflow drives the end-to-end posting run against a gateway:
// refresh the cache, render the prompt, generate text and publish it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/ai"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/capability"
)

// DefaultTopic is used when the caller does not supply one.
const DefaultTopic = "The importance of open standards in AI development"

// Step names recorded in a Report.
const (
	StepFetch    = capability.FetchAndCacheTweets
	StepPrompt   = capability.GeneratePost
	StepGenerate = "generate"
	StepPost     = capability.PostToX
)

var (
	ErrActionFailed   = errors.New("action reported failure")
	ErrGenerateFailed = errors.New("generation failed")
	ErrEmptyPost      = errors.New("generated post is empty")
)

// Gateway is the subset of an MCP client the workflow needs.
type Gateway interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
}

// Generator turns a rendered prompt into text.
type Generator interface {
	Generate(ctx context.Context, messages []chat.Message) (ai.Result, error)
}

// Report describes how far a run got. Listing tools is informational and
// is not counted as a step.
type Report struct {
	Steps         []string
	Tools         []string
	CacheMessage  string
	GeneratedText string
	PostMessage   string
}

// Orchestrator runs the posting workflow. It holds no state between runs.
type Orchestrator struct {
	gateway   Gateway
	generator Generator
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(gateway Gateway, generator Generator) *Orchestrator {
	return &Orchestrator{gateway: gateway, generator: generator}
}

// Run executes every step in order and stops at the first failure. Steps
// that already completed are not undone.
func (o *Orchestrator) Run(ctx context.Context, topic string) (Report, error) {
	var report Report
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}

	tools, err := o.gateway.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return report, fmt.Errorf("list tools: %w", err)
	}
	for _, t := range tools.Tools {
		report.Tools = append(report.Tools, t.Name)
	}
	log.Printf("[workflow] gateway offers %d tools", len(tools.Tools))

	fetched, err := o.callTool(ctx, capability.FetchAndCacheTweets, map[string]any{})
	if err != nil {
		return report, fmt.Errorf("%s: %w", StepFetch, err)
	}
	report.Steps = append(report.Steps, StepFetch)
	report.CacheMessage = resultText(fetched)
	log.Printf("[workflow] %s", report.CacheMessage)
	if fetched.IsError {
		return report, fmt.Errorf("%s: %w: %s", StepFetch, ErrActionFailed, report.CacheMessage)
	}

	log.Printf("[workflow] generating post on %q", topic)
	promptReq := mcp.GetPromptRequest{}
	promptReq.Params.Name = capability.GeneratePost
	promptReq.Params.Arguments = map[string]string{"topic": topic}
	prompt, err := o.gateway.GetPrompt(ctx, promptReq)
	if err != nil {
		return report, fmt.Errorf("%s: %w", StepPrompt, err)
	}
	report.Steps = append(report.Steps, StepPrompt)

	result, err := o.generator.Generate(ctx, promptMessages(prompt.Messages))
	if err != nil {
		return report, fmt.Errorf("%s: %w", StepGenerate, err)
	}
	report.Steps = append(report.Steps, StepGenerate)
	if result.Failed() {
		return report, fmt.Errorf("%s: %w: %w", StepGenerate, ErrGenerateFailed, result.Err)
	}

	text := strings.TrimSpace(result.Text)
	report.GeneratedText = text
	if text == "" {
		return report, fmt.Errorf("%s: %w", StepGenerate, ErrEmptyPost)
	}
	log.Printf("[workflow] generated post: %q", text)

	posted, err := o.callTool(ctx, capability.PostToX, map[string]any{"content": text})
	if err != nil {
		return report, fmt.Errorf("%s: %w", StepPost, err)
	}
	report.Steps = append(report.Steps, StepPost)
	report.PostMessage = resultText(posted)
	log.Printf("[workflow] %s", report.PostMessage)
	if posted.IsError {
		return report, fmt.Errorf("%s: %w: %s", StepPost, ErrActionFailed, report.PostMessage)
	}

	return report, nil
}

func (o *Orchestrator) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return o.gateway.CallTool(ctx, req)
}

func resultText(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func promptMessages(in []mcp.PromptMessage) []chat.Message {
	out := make([]chat.Message, 0, len(in))
	for _, m := range in {
		out = append(out, chat.Message{Role: chat.Role(m.Role), Text: mcp.GetTextFromContent(m.Content)})
	}
	return out
}
