package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/post"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/ai"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/cache"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/xapi"
)

// Capability names exposed by the gateway.
const (
	FetchAndCacheTweets = "fetchAndCacheTweets"
	RecentPosts         = "recent-posts"
	GeneratePost        = "generate-post"
	PostToX             = "postToX"

	RecentPostsURI = "x://user/recent-posts"
)

// PostCache is the cache surface used by the capabilities.
type PostCache interface {
	RefreshIfStale(ctx context.Context) (cache.RefreshResult, error)
	Read() post.Snapshot
}

// Publisher publishes a post and returns its id.
type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

// PostCapabilities implements the four post-related capabilities.
type PostCapabilities struct {
	cache     PostCache
	publisher Publisher
	prompt    *ai.PostPrompt
}

// NewPostCapabilities creates the capability set.
func NewPostCapabilities(c PostCache, publisher Publisher) *PostCapabilities {
	return &PostCapabilities{cache: c, publisher: publisher, prompt: ai.NewPostPrompt()}
}

// Register adds every capability to r.
func (p *PostCapabilities) Register(r *Registry) error {
	for _, d := range p.Descriptors() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Descriptors lists the capabilities in their advertised order.
func (p *PostCapabilities) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        FetchAndCacheTweets,
			Kind:        KindAction,
			Title:       "Fetch and Cache X.com Posts",
			Description: "Fetches the latest posts from X.com and saves them locally.",
			Handler:     p.fetchAndCache,
		},
		{
			Name:        RecentPosts,
			Kind:        KindResource,
			Title:       "Recent User Posts",
			Description: "Provides the 20 most recent posts from the local cache.",
			URI:         RecentPostsURI,
			MimeType:    "application/json",
			Handler:     p.recentPosts,
		},
		{
			Name:        GeneratePost,
			Kind:        KindPrompt,
			Title:       "Generate X.com Post",
			Description: "Generates a new post on a topic, using previous posts for style.",
			Arguments: []Argument{
				{Name: "topic", Description: "Topic for the new post", Required: true},
			},
			Handler: p.generatePost,
		},
		{
			Name:        PostToX,
			Kind:        KindAction,
			Title:       "Post to X.com",
			Description: "Publishes the given text as a new post on X.com.",
			Arguments: []Argument{
				{Name: "content", Description: "Text to post", Required: true},
			},
			Handler: p.postToX,
		},
	}
}

func (p *PostCapabilities) fetchAndCache(ctx context.Context, _ map[string]string) (Response, error) {
	log.Printf("[capability] %s called", FetchAndCacheTweets)

	result, err := p.cache.RefreshIfStale(ctx)
	if err != nil {
		log.Printf("[capability] %s failed: %v", FetchAndCacheTweets, err)
		return Failure("Error fetching tweets: %s", providerMessage(err)), nil
	}

	switch {
	case !result.Refreshed:
		return Response{Text: fmt.Sprintf("Cache validation successful. Found %d cached tweets.", result.Count)}, nil
	case result.Count == 0:
		return Response{Text: "No tweets found for this user"}, nil
	default:
		return Response{Text: fmt.Sprintf("Successfully fetched and cached %d tweets.", result.Count)}, nil
	}
}

func (p *PostCapabilities) recentPosts(_ context.Context, _ map[string]string) (Response, error) {
	snapshot := p.cache.Read()
	if len(snapshot) == 0 {
		log.Printf("[capability] %s: no cached posts", RecentPosts)
		return Response{Contents: []ResourceContent{}}, nil
	}

	recent := snapshot.Recent(post.MaxCached)
	data, err := json.Marshal(recent)
	if err != nil {
		return Response{}, fmt.Errorf("encode recent posts: %w", err)
	}

	log.Printf("[capability] %s: returning %d posts", RecentPosts, len(recent))
	return Response{Contents: []ResourceContent{{
		URI:      RecentPostsURI,
		MimeType: "application/json",
		Text:     string(data),
	}}}, nil
}

func (p *PostCapabilities) generatePost(ctx context.Context, args map[string]string) (Response, error) {
	topic := args["topic"]
	posts := p.cache.Read().Recent(ai.MaxStylePosts)
	log.Printf("[capability] %s called, topic=%q, style posts=%d", GeneratePost, topic, len(posts))

	messages, err := p.prompt.Render(ctx, topic, posts)
	if err != nil {
		return Response{}, err
	}
	return Response{Messages: messages}, nil
}

func (p *PostCapabilities) postToX(ctx context.Context, args map[string]string) (Response, error) {
	content := args["content"]
	log.Printf("[capability] %s called, length=%d", PostToX, len(content))

	id, err := p.publisher.Publish(ctx, content)
	if err != nil {
		log.Printf("[capability] %s failed: %v", PostToX, err)
		return Failure("Error posting tweet: %s", providerMessage(err)), nil
	}

	log.Printf("[capability] posted id=%s", id)
	return Response{Text: fmt.Sprintf("Successfully posted tweet ID: %s", id)}, nil
}

// providerMessage prefers the upstream API's own wording over the wrapped error chain.
func providerMessage(err error) string {
	var apiErr *xapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
