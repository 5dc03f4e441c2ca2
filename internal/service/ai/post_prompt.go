package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/post"
)

// MaxStylePosts is the number of cached posts shown to the model as style examples.
const MaxStylePosts = 5

// NoRecentPosts replaces the examples when the cache is empty.
const NoRecentPosts = "No recent posts available."

var systemParagraphs = []string{
	"You are an expert social media manager.",
	"Write a short, engaging post for X.com (Twitter) in the user's style.",
	"Here are some of the user's recent posts to learn their style:",
	"{context}",
	`Now write a new post on the topic: "{topic}".`,
	"Keep it under 280 characters and make it engaging.",
}

// PostPrompt renders the generate-post conversation.
type PostPrompt struct {
	template prompt.ChatTemplate
}

// NewPostPrompt creates the prompt with its system and user templates.
func NewPostPrompt() *PostPrompt {
	return &PostPrompt{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage(strings.Join(systemParagraphs, "\n\n")),
			schema.UserMessage("Topic: {topic}"),
		),
	}
}

// Render builds the system and user messages for topic, using up to
// MaxStylePosts of posts as style examples.
func (p *PostPrompt) Render(ctx context.Context, topic string, posts []post.Post) ([]chat.Message, error) {
	rendered, err := p.template.Format(ctx, map[string]any{
		"context": StyleContext(posts),
		"topic":   topic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render post prompt: %w", err)
	}

	messages := make([]chat.Message, 0, len(rendered))
	for _, msg := range rendered {
		messages = append(messages, chat.Message{Role: chat.Role(msg.Role), Text: msg.Content})
	}
	return messages, nil
}

// StyleContext formats posts as a quoted bullet list.
func StyleContext(posts []post.Post) string {
	if len(posts) > MaxStylePosts {
		posts = posts[:MaxStylePosts]
	}
	if len(posts) == 0 {
		return NoRecentPosts
	}

	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, `- "`+p.Text+`"`)
	}
	return strings.Join(lines, "\n")
}
