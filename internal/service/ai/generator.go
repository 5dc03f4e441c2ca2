package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
)

// FailureText is returned in place of generated text once every attempt has failed.
const FailureText = "Generation error after retries."

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 2

// ErrMissingCredentials means the transport cannot call the provider at all.
// It is never retried.
var ErrMissingCredentials = errors.New("generation credentials missing")

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

// DefaultOptions returns the fixed sampling parameters used for post generation.
func DefaultOptions() Options {
	return Options{
		Temperature:     0.7,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 4096,
	}
}

// Transport performs one generation request.
type Transport interface {
	Generate(ctx context.Context, messages []chat.Message, opts Options) (string, error)
}

// Result is the outcome of a generation. Err holds the last transport error
// when every attempt failed, in which case Text is FailureText.
type Result struct {
	Text     string
	Attempts int
	Err      error
}

// Failed reports whether generation exhausted its attempts.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Generator retries a Transport a bounded number of times.
type Generator struct {
	transport  Transport
	maxRetries int
	opts       Options
}

// NewGenerator creates a generator. A negative maxRetries is treated as zero.
func NewGenerator(transport Transport, maxRetries int) *Generator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Generator{
		transport:  transport,
		maxRetries: maxRetries,
		opts:       DefaultOptions(),
	}
}

// Generate runs the conversation through the transport, making at most
// maxRetries+1 attempts with no delay between them.
func (g *Generator) Generate(ctx context.Context, messages []chat.Message) (Result, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		attempts++
		log.Printf("[ai] generation attempt %d/%d", attempts, g.maxRetries+1)

		text, err := g.transport.Generate(ctx, messages, g.opts)
		if err == nil {
			return Result{Text: text, Attempts: attempts}, nil
		}
		if errors.Is(err, ErrMissingCredentials) {
			return Result{Attempts: attempts}, err
		}

		log.Printf("[ai] generation attempt %d failed: %v", attempts, err)
		lastErr = err
	}

	return Result{
		Text:     FailureText,
		Attempts: attempts,
		Err:      fmt.Errorf("generation failed after %d attempts: %w", attempts, lastErr),
	}, nil
}
