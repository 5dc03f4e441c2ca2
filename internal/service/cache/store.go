package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/post"
)

var (
	ErrCacheMissing     = errors.New("cache file not found")
	ErrCacheCorrupt     = errors.New("cache file is corrupt")
	ErrUsernameRequired = errors.New("X_USERNAME not found in environment variables")
)

// cacheFileMode keeps the cache readable by other local tools.
const cacheFileMode os.FileMode = 0o644

// Timeline is the slice of the posting API the cache refreshes from.
type Timeline interface {
	UserIDByUsername(ctx context.Context, username string) (string, error)
	UserTimeline(ctx context.Context, userID string, limit int) ([]post.Post, error)
}

// RefreshResult describes what RefreshIfStale did.
type RefreshResult struct {
	Refreshed bool
	Count     int
}

// Store keeps a single JSON file of the account's most recent posts.
//
// The cache counts as fresh whenever it parses and holds at least one post;
// only a missing, corrupt or empty file triggers a remote fetch.
type Store struct {
	path     string
	source   Timeline
	username string

	// refreshMu serializes refreshes so concurrent sessions never double-fetch.
	refreshMu sync.Mutex
}

// NewStore returns a Store persisting to path and refreshing from source.
func NewStore(path string, source Timeline, username string) *Store {
	return &Store{path: path, source: source, username: username}
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot, distinguishing a missing file from a corrupt one.
func (s *Store) Load() (post.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	var snapshot post.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return snapshot, nil
}

// Read returns the cached snapshot, or an empty one when the file is missing
// or unreadable.
func (s *Store) Read() post.Snapshot {
	snapshot, err := s.Load()
	if err != nil {
		return nil
	}
	return snapshot
}

// Write replaces the cache file. The previous file survives a failed write.
func (s *Store) Write(snapshot post.Snapshot) error {
	if snapshot == nil {
		snapshot = post.Snapshot{}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Chmod(cacheFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// RefreshIfStale validates the cache and fetches fresh posts only when it is
// missing, corrupt or empty.
func (s *Store) RefreshIfStale(ctx context.Context) (RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snapshot, err := s.Load()
	switch {
	case err == nil && len(snapshot) > 0:
		log.Printf("[cache] %d cached posts, skipping remote fetch", len(snapshot))
		return RefreshResult{Count: len(snapshot)}, nil
	case err == nil:
		log.Printf("[cache] cache is empty, fetching fresh posts")
	case errors.Is(err, ErrCacheMissing):
		log.Printf("[cache] no cache file at %s, fetching fresh posts", s.path)
	default:
		log.Printf("[cache] unreadable cache, fetching fresh posts: %v", err)
	}

	if s.username == "" {
		return RefreshResult{}, ErrUsernameRequired
	}

	userID, err := s.source.UserIDByUsername(ctx, s.username)
	if err != nil {
		return RefreshResult{}, err
	}

	posts, err := s.source.UserTimeline(ctx, userID, post.MaxCached)
	if err != nil {
		return RefreshResult{}, err
	}

	fresh := post.Snapshot(posts).Dedupe().Recent(post.MaxCached)
	if err := s.Write(fresh); err != nil {
		return RefreshResult{}, err
	}

	log.Printf("[cache] cached %d posts for user=%s to %s", len(fresh), s.username, s.path)
	return RefreshResult{Refreshed: true, Count: len(fresh)}, nil
}
