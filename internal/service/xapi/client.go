package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/post"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmptyPost    = errors.New("post text is empty")
)

// maxResponseSize caps how much of an API response body is read.
const maxResponseSize = 4 << 20

// APIError is a failure reported by the X API.
type APIError struct {
	Status  int
	Title   string
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Message != "":
		return fmt.Sprintf("x api %d: %s: %s", e.Status, e.Title, e.Message)
	case e.Message != "":
		return fmt.Sprintf("x api %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("x api %d: %s", e.Status, http.StatusText(e.Status))
	}
}

// Config holds what the client needs to talk to the X API.
type Config struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	BaseURL           string
	// RateLimit is the sustained number of requests per second.
	RateLimit float64
	Timeout   time.Duration
}

// Client is an OAuth 1.0a user-context client for the X v2 API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a signing client. Credentials are validated by the caller
// so that a half-configured client can still report errors per call.
func NewClient(cfg Config) *Client {
	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	httpClient := oauthCfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = cfg.Timeout
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 30 * time.Second
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// UserIDByUsername resolves an account handle to its numeric id.
func (c *Client) UserIDByUsername(ctx context.Context, username string) (string, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	var resp struct {
		Data *struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
		Errors []apiProblem `json:"errors"`
	}
	if err := c.do(ctx, http.MethodGet, "/2/users/by/username/"+url.PathEscape(username), nil, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	log.Printf("[xapi] resolved user=%s id=%s", username, resp.Data.ID)
	return resp.Data.ID, nil
}

// UserTimeline returns up to limit of the user's most recent posts, newest first.
func (c *Client) UserTimeline(ctx context.Context, userID string, limit int) ([]post.Post, error) {
	query := url.Values{}
	query.Set("max_results", strconv.Itoa(clampPageSize(limit)))
	query.Set("tweet.fields", "id,text,created_at")

	var resp struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
		Errors []apiProblem `json:"errors"`
	}
	path := "/2/users/" + url.PathEscape(userID) + "/tweets?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		return nil, &APIError{Status: http.StatusOK, Title: resp.Errors[0].Title, Message: resp.Errors[0].message()}
	}

	posts := make([]post.Post, 0, len(resp.Data))
	for _, t := range resp.Data {
		posts = append(posts, post.Post{ID: t.ID, Text: t.Text})
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// Publish creates a post and returns the id the API assigned to it.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyPost
	}

	var resp struct {
		Data *struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
		Errors []apiProblem `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, "/2/tweets", map[string]string{"text": text}, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		apiErr := &APIError{Status: http.StatusOK, Message: "response carried no post id"}
		if len(resp.Errors) > 0 {
			apiErr.Title = resp.Errors[0].Title
			apiErr.Message = resp.Errors[0].message()
		}
		return "", apiErr
	}

	log.Printf("[xapi] published post id=%s", resp.Data.ID)
	return resp.Data.ID, nil
}

type apiProblem struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (p apiProblem) message() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Message
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("x api rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode x api request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build x api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("x api %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read x api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode x api response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var problem struct {
		apiProblem
		Errors []apiProblem `json:"errors"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(data, &problem); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	switch {
	case problem.Detail != "" || problem.Title != "":
		apiErr.Title = problem.Title
		apiErr.Message = problem.Detail
	case len(problem.Errors) > 0:
		apiErr.Title = problem.Errors[0].Title
		apiErr.Message = problem.Errors[0].message()
	default:
		apiErr.Message = problem.Message
	}
	return apiErr
}

// clampPageSize keeps max_results inside the 5..100 window the API accepts.
func clampPageSize(n int) int {
	if n < 5 {
		return 5
	}
	if n > 100 {
		return 100
	}
	return n
}
