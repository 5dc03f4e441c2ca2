package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/capability"
)

// Identity reported to clients during initialize.
const (
	ServerName    = "x-posting-server"
	ServerVersion = "1.0.0"
)

// NewServer builds an MCP server exposing every capability in registry:
// actions as tools, resources by URI and prompts by name.
func NewServer(registry *capability.Registry) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInputSchemaValidation(),
		server.WithRecovery(),
	)

	for _, d := range registry.List(capability.KindAction) {
		s.AddTool(toolFor(d), toolHandler(registry, d.Name))
	}
	for _, d := range registry.List(capability.KindResource) {
		s.AddResource(resourceFor(d), resourceHandler(registry, d.Name))
	}
	for _, d := range registry.List(capability.KindPrompt) {
		s.AddPrompt(promptFor(d), promptHandler(registry, d))
	}
	return s
}

func toolFor(d capability.Descriptor) mcp.Tool {
	return mcp.NewTool(d.Name,
		mcp.WithToolTitle(d.Title),
		mcp.WithDescription(d.Description),
		mcp.WithRawInputSchema(d.InputSchema()),
	)
}

func resourceFor(d capability.Descriptor) mcp.Resource {
	return mcp.NewResource(d.URI, d.Name,
		mcp.WithResourceTitle(d.Title),
		mcp.WithResourceDescription(d.Description),
		mcp.WithMIMEType(d.MimeType),
	)
}

func promptFor(d capability.Descriptor) mcp.Prompt {
	opts := []mcp.PromptOption{
		mcp.WithPromptTitle(d.Title),
		mcp.WithPromptDescription(d.Description),
	}
	for _, arg := range d.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
		if arg.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(arg.Name, argOpts...))
	}
	return mcp.NewPrompt(d.Name, opts...)
}

// toolHandler reports bad arguments and capability failures as error results
// so the caller sees them as application errors, not protocol errors.
func toolHandler(registry *capability.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		resp, err := registry.Invoke(ctx, capability.KindAction, name, raw)
		if errors.Is(err, capability.ErrInvalidArguments) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			log.Printf("[mcp] tool %s failed: %v", name, err)
			return nil, err
		}

		if resp.Failed() {
			return mcp.NewToolResultError(resp.Failure), nil
		}
		return mcp.NewToolResultText(resp.Text), nil
	}
}

func resourceHandler(registry *capability.Registry, name string) server.ResourceHandlerFunc {
	return func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		resp, err := registry.Invoke(ctx, capability.KindResource, name, nil)
		if err != nil {
			log.Printf("[mcp] resource %s failed: %v", name, err)
			return nil, err
		}
		if resp.Failed() {
			return nil, errors.New(resp.Failure)
		}

		contents := make([]mcp.ResourceContents, 0, len(resp.Contents))
		for _, c := range resp.Contents {
			contents = append(contents, mcp.TextResourceContents{URI: c.URI, MIMEType: c.MimeType, Text: c.Text})
		}
		return contents, nil
	}
}

func promptHandler(registry *capability.Registry, d capability.Descriptor) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		raw, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return nil, err
		}

		resp, err := registry.Invoke(ctx, capability.KindPrompt, d.Name, raw)
		if err != nil {
			log.Printf("[mcp] prompt %s failed: %v", d.Name, err)
			return nil, err
		}
		if resp.Failed() {
			return nil, errors.New(resp.Failure)
		}

		messages := make([]mcp.PromptMessage, 0, len(resp.Messages))
		for _, msg := range resp.Messages {
			messages = append(messages, mcp.NewPromptMessage(promptRole(msg.Role), mcp.NewTextContent(msg.Text)))
		}
		return mcp.NewGetPromptResult(d.Description, messages), nil
	}
}

// promptRole maps a conversation role onto the two roles prompt messages may
// carry. Instructions travel as a user turn.
func promptRole(role chat.Role) mcp.Role {
	if role == chat.RoleAssistant {
		return mcp.RoleAssistant
	}
	return mcp.RoleUser
}
