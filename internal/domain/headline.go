package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when no record exists for a key.
var ErrNotFound = errors.New("not found")

// PlatformItem is one headline of a platform's ranked list for a single cycle.
type PlatformItem struct {
	PlatformID string    `json:"platform_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	MobileURL  string    `json:"mobile_url,omitempty"`
	Rank       int       `json:"rank"`
	ObservedAt time.Time `json:"observed_at"`
}

// PlatformResult is what the fetch collaborator hands over per platform.
type PlatformResult struct {
	PlatformID string
	Name       string
	Items      []PlatformItem
	Err        error
}

// Failed reports whether the platform contributed no usable data this cycle.
func (r PlatformResult) Failed() bool {
	return r.Err != nil || len(r.Items) == 0
}

// Cycle is one poll of all configured platforms.
type Cycle struct {
	ID      string
	At      time.Time
	Results []PlatformResult
}

// Key returns the cycle identifier, derived from the poll time when none was given.
func (c Cycle) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.At.UTC().Format(time.RFC3339Nano)
}

// TotalItems counts raw headlines across all platforms, matched or not.
func (c Cycle) TotalItems() int {
	total := 0
	for _, r := range c.Results {
		if r.Err == nil {
			total += len(r.Items)
		}
	}
	return total
}

// KeywordGroup is a configured word with its include/exclude term sets.
type KeywordGroup struct {
	Word          string   `json:"word" yaml:"word"`
	IncludeTerms  []string `json:"include" yaml:"include"`
	ExcludeTerms  []string `json:"exclude" yaml:"exclude"`
	RankThreshold int      `json:"rank_threshold" yaml:"rank_threshold"`
}

// DefaultRankThreshold bounds the "high" tier when a group does not set one.
const DefaultRankThreshold = 10

// Threshold returns the group's rank threshold or the default.
func (g KeywordGroup) Threshold() int {
	if g.RankThreshold <= 0 {
		return DefaultRankThreshold
	}
	return g.RankThreshold
}

// Identity tracks a headline across cycles: platform plus normalized title hash.
type Identity struct {
	Platform string `json:"platform"`
	Hash     string `json:"hash"`
}

// NewIdentity builds the identity of a title on a platform.
func NewIdentity(platform, title string) Identity {
	sum := sha1.Sum([]byte(NormalizeTitle(title)))
	return Identity{Platform: platform, Hash: hex.EncodeToString(sum[:])}
}

// Key is the string form used as the store key.
func (id Identity) Key() string {
	return id.Platform + ":" + id.Hash
}

// ParseIdentity reverses Key.
func ParseIdentity(key string) (Identity, bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return Identity{}, false
	}
	return Identity{Platform: key[:i], Hash: key[i+1:]}, true
}

// NormalizeTitle trims, collapses whitespace and lower-cases a headline.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// MatchedTitle is a headline matched to one keyword group within a window.
type MatchedTitle struct {
	Identity    Identity  `json:"identity"`
	GroupIndex  int       `json:"group_index"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	MobileURL   string    `json:"mobile_url,omitempty"`
	Ranks       []int     `json:"ranks"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Count       int       `json:"count"`
	IsNew       bool      `json:"is_new"`
}

// HistoryRecord is the persisted terminal state of an identity.
type HistoryRecord struct {
	Identity    Identity  `json:"identity"`
	Title       string    `json:"title"`
	Ranks       []int     `json:"ranks"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Count       int       `json:"count"`
}

// Merge folds a newer delta into the record: ranks concatenate, counts add,
// first seen keeps the earliest and last seen the latest.
func (r HistoryRecord) Merge(delta HistoryRecord) HistoryRecord {
	out := r
	if out.Identity == (Identity{}) {
		out.Identity = delta.Identity
	}
	if delta.Title != "" {
		out.Title = delta.Title
	}
	out.Ranks = append(append(make([]int, 0, len(r.Ranks)+len(delta.Ranks)), r.Ranks...), delta.Ranks...)
	out.Count = r.Count + delta.Count
	if out.FirstSeenAt.IsZero() || (!delta.FirstSeenAt.IsZero() && delta.FirstSeenAt.Before(out.FirstSeenAt)) {
		out.FirstSeenAt = delta.FirstSeenAt
	}
	if delta.LastSeenAt.After(out.LastSeenAt) {
		out.LastSeenAt = delta.LastSeenAt
	}
	return out
}
