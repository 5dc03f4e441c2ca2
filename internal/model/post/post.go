package post

// MaxCached is the page size requested from the posting API and the most a
// snapshot ever holds.
const MaxCached = 20

// Post is the cached projection of a published post.
type Post struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Snapshot is an ordered, most-recent-first list of posts.
type Snapshot []Post

// Dedupe drops repeated ids, keeping the first occurrence so ordering is preserved.
func (s Snapshot) Dedupe() Snapshot {
	seen := make(map[string]struct{}, len(s))
	out := make(Snapshot, 0, len(s))
	for _, p := range s {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Recent returns at most n leading posts.
func (s Snapshot) Recent(n int) Snapshot {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return append(Snapshot(nil), s...)
	}
	return append(Snapshot(nil), s[:n]...)
}
