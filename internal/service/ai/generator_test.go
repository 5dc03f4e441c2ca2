package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
)

type scriptedTransport struct {
	replies []scriptedReply
	calls   int
	opts    Options
}

type scriptedReply struct {
	text string
	err  error
}

func (s *scriptedTransport) Generate(_ context.Context, _ []chat.Message, opts Options) (string, error) {
	s.opts = opts
	idx := s.calls
	s.calls++
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx].text, s.replies[idx].err
}

var conversation = []chat.Message{
	{Role: chat.RoleSystem, Text: "be brief"},
	{Role: chat.RoleUser, Text: "Topic: go"},
}

func TestGenerateRecoversAfterTransientFailures(t *testing.T) {
	transport := &scriptedTransport{replies: []scriptedReply{
		{err: errors.New("503")},
		{err: errors.New("503")},
		{text: "ok"},
	}}

	result, err := NewGenerator(transport, DefaultMaxRetries).Generate(context.Background(), conversation)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if result.Failed() || result.Text != "ok" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Attempts != 3 || transport.calls != 3 {
		t.Fatalf("expected 3 attempts, got result=%d calls=%d", result.Attempts, transport.calls)
	}
}

func TestGenerateReturnsSentinelAfterExhaustion(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 4} {
		t.Run(fmt.Sprintf("retries=%d", maxRetries), func(t *testing.T) {
			boom := errors.New("boom")
			transport := &scriptedTransport{replies: []scriptedReply{{err: boom}}}

			result, err := NewGenerator(transport, maxRetries).Generate(context.Background(), conversation)
			if err != nil {
				t.Fatalf("Generate err: %v", err)
			}
			if result.Text != FailureText || !result.Failed() {
				t.Fatalf("expected sentinel, got %+v", result)
			}
			if !errors.Is(result.Err, boom) {
				t.Fatalf("expected last error to be kept, got %v", result.Err)
			}
			if transport.calls != maxRetries+1 {
				t.Fatalf("expected %d calls, got %d", maxRetries+1, transport.calls)
			}
		})
	}
}

func TestGenerateDoesNotRetryEmptyText(t *testing.T) {
	transport := &scriptedTransport{replies: []scriptedReply{{text: ""}, {text: "late"}}}

	result, err := NewGenerator(transport, DefaultMaxRetries).Generate(context.Background(), conversation)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if result.Text != "" || result.Failed() || transport.calls != 1 {
		t.Fatalf("unexpected result %+v after %d calls", result, transport.calls)
	}
}

func TestGenerateMissingCredentialsIsHardError(t *testing.T) {
	transport := &scriptedTransport{replies: []scriptedReply{{err: fmt.Errorf("%w: no key", ErrMissingCredentials)}}}

	_, err := NewGenerator(transport, DefaultMaxRetries).Generate(context.Background(), conversation)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if transport.calls != 1 {
		t.Fatalf("expected a single call, got %d", transport.calls)
	}
}

func TestGenerateStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	transport := &scriptedTransport{replies: []scriptedReply{{text: "never"}}}

	result, err := NewGenerator(transport, DefaultMaxRetries).Generate(ctx, conversation)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if !result.Failed() || !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected cancelled failure, got %+v", result)
	}
	if transport.calls != 0 {
		t.Fatalf("expected no calls, got %d", transport.calls)
	}
}

func TestGeneratePassesFixedOptions(t *testing.T) {
	transport := &scriptedTransport{replies: []scriptedReply{{text: "ok"}}}

	if _, err := NewGenerator(transport, -3).Generate(context.Background(), conversation); err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if transport.opts != DefaultOptions() {
		t.Fatalf("unexpected options: %+v", transport.opts)
	}
	if want := (Options{Temperature: 0.7, TopP: 0.8, TopK: 40, MaxOutputTokens: 4096}); transport.opts != want {
		t.Fatalf("unexpected options: %+v", transport.opts)
	}
}
