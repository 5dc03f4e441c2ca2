package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/config"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
)

// ChatModelTransport generates text with an eino chat model.
type ChatModelTransport struct {
	chain compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewChatModelTransport compiles a single-node chain around chatModel.
func NewChatModelTransport(ctx context.Context, chatModel model.BaseChatModel) (*ChatModelTransport, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &ChatModelTransport{chain: runnable}, nil
}

// NewArkTransport builds the Ark chat model from cfg and wraps it.
func NewArkTransport(ctx context.Context, cfg config.AIConfig) (*ChatModelTransport, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: set ARK_API_KEY and Model", ErrMissingCredentials)
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChatModelTransport(ctx, chatModel)
}

// Generate implements Transport. TopK has no eino common option and is not sent.
func (t *ChatModelTransport) Generate(ctx context.Context, messages []chat.Message, opts Options) (string, error) {
	input := toSchemaMessages(messages)

	resp, err := t.chain.Invoke(ctx, input, compose.WithChatModelOption(
		model.WithTemperature(opts.Temperature),
		model.WithTopP(opts.TopP),
		model.WithMaxTokens(opts.MaxOutputTokens),
	))
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}
	if resp == nil {
		return "", nil
	}

	log.Printf("[ai] chat model responded, length=%d", len(resp.Content))
	return resp.Content, nil
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Text))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Text, nil))
		default:
			out = append(out, schema.UserMessage(msg.Text))
		}
	}
	return out
}
