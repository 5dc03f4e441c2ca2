package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
)

type fakeChatModel struct {
	input []*schema.Message
	opts  *model.Options
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.opts = model.GetCommonOptions(nil, opts...)
	return schema.AssistantMessage("from model", nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("from model", nil)}), nil
}

func TestChatModelTransportPassesMessagesAndOptions(t *testing.T) {
	fake := &fakeChatModel{}
	transport, err := NewChatModelTransport(context.Background(), fake)
	if err != nil {
		t.Fatalf("NewChatModelTransport err: %v", err)
	}

	text, err := transport.Generate(context.Background(), []chat.Message{
		{Role: chat.RoleSystem, Text: "sys"},
		{Role: chat.RoleUser, Text: "Topic: x"},
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if text != "from model" {
		t.Fatalf("unexpected text %q", text)
	}

	if len(fake.input) != 2 || fake.input[0].Role != schema.System || fake.input[1].Content != "Topic: x" {
		t.Fatalf("unexpected model input: %+v", fake.input)
	}
	if fake.opts == nil || fake.opts.Temperature == nil || *fake.opts.Temperature != 0.7 {
		t.Fatalf("temperature not passed: %+v", fake.opts)
	}
	if fake.opts.MaxTokens == nil || *fake.opts.MaxTokens != 4096 {
		t.Fatalf("max tokens not passed: %+v", fake.opts)
	}
}

func TestNewChatModelTransportRejectsNil(t *testing.T) {
	if _, err := NewChatModelTransport(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil model")
	}
}

type failingChatModel struct {
	fakeChatModel
}

func (f *failingChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, errors.New("upstream unavailable")
}

func TestChatModelFailureTextNamesNoProvider(t *testing.T) {
	transport, err := NewChatModelTransport(context.Background(), &failingChatModel{})
	if err != nil {
		t.Fatalf("NewChatModelTransport err: %v", err)
	}

	result, err := NewGenerator(transport, 1).Generate(context.Background(), []chat.Message{{Role: chat.RoleUser, Text: "Topic: x"}})
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if result.Text != "Generation error after retries." {
		t.Fatalf("unexpected failure text %q", result.Text)
	}
	if strings.Contains(result.Text, "Gemini") {
		t.Fatalf("failure text names a provider: %q", result.Text)
	}
}
