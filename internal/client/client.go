// Package client connects to a gateway over its SSE stream.
package client

import (
	"context"
	"fmt"
	"log"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultInfo identifies the client during initialize.
var DefaultInfo = mcp.Implementation{Name: "x-posting-client", Version: "1.0.0"}

// Connect opens the stream at sseURL and completes the initialize handshake.
// The stream stays open until ctx ends or the client is closed.
func Connect(ctx context.Context, sseURL string) (*mcpclient.Client, error) {
	c, err := mcpclient.NewSSEMCPClient(sseURL)
	if err != nil {
		return nil, err
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("open stream: %w", err)
	}

	// The gateway keeps per-session state, so pin the handshake-based protocol.
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_LEGACY_PROTOCOL_VERSION
	req.Params.ClientInfo = DefaultInfo

	result, err := c.Initialize(ctx, req)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	log.Printf("[client] connected to %s %s (protocol %s)", result.ServerInfo.Name, result.ServerInfo.Version, result.ProtocolVersion)
	return c, nil
}

// Endpoint returns the side-channel URL the stream announced.
func Endpoint(c *mcpclient.Client) string {
	return mcpclient.GetEndpoint(c).String()
}

// Text joins the text items of a tool result.
func Text(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var text string
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			text += tc.Text
		}
	}
	return text
}
