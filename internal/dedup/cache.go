// Package dedup remembers which news items were already delivered and
// detects polling cycles whose upstream payload did not change.
//
// State lives in two JSON documents under the cache directory:
//
//	news_cache.json     seen ids, processed counter, last update, sent digest marks
//	last_response.json  fingerprint of the last payload, its time and size
//
// All read-modify-write sequences hold one mutex per Cache. A single process
// per directory is assumed and not enforced.
package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

const (
	newsCacheFile    = "news_cache.json"
	lastResponseFile = "last_response.json"
)

// newsDocument is the on-disk shape of news_cache.json.
type newsDocument struct {
	NewsIDs        []string   `json:"news_ids"`
	LastUpdate     *time.Time `json:"last_update"`
	TotalProcessed int        `json:"total_processed"`
	SentSummaryIDs []string   `json:"sent_summary_ids,omitempty"`
}

// responseDocument is the on-disk shape of last_response.json.
type responseDocument struct {
	Timestamp    *time.Time `json:"timestamp"`
	ResponseHash string     `json:"response_hash"`
	NewsCount    int        `json:"news_count"`
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	TotalProcessed    int        `json:"total_processed"`
	UniqueIDs         int        `json:"unique_ids"`
	SentSummaries     int        `json:"sent_summaries"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
	LastResponseTime  *time.Time `json:"last_response_time,omitempty"`
	LastResponseCount int        `json:"last_response_count"`
	LastResponseHash  string     `json:"last_response_hash,omitempty"`
	NewsCacheFile     string     `json:"news_cache_file"`
	LastResponseFile  string     `json:"last_response_file"`
}

// Cache is the persisted seen-set plus last-payload fingerprint.
type Cache struct {
	mu        sync.Mutex
	dir       string
	backupDir string
	log       *slog.Logger
	now       func() time.Time
	keyOf     func(models.NewsItem) string

	seen           map[string]struct{}
	sent           map[string]struct{}
	totalProcessed int
	lastUpdate     *time.Time

	lastHash      string
	lastResponse  *time.Time
	lastRespCount int
}

// Option configures a Cache.
type Option func(*Cache)

// WithBackupDir sets the directory that receives Backup snapshots.
func WithBackupDir(dir string) Option {
	return func(c *Cache) { c.backupDir = dir }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithBareIDs keys the seen-set by raw item id instead of "source:id".
// Matches state files written by older deployments.
func WithBareIDs() Option {
	return func(c *Cache) {
		c.keyOf = func(n models.NewsItem) string { return n.ID }
	}
}

// New opens the cache in dir and loads any existing state. Unreadable or
// corrupt files are logged and treated as empty.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:       dir,
		backupDir: "cache_backup",
		log:       slog.Default(),
		now:       time.Now,
		keyOf:     models.NewsItem.Key,
		seen:      make(map[string]struct{}),
		sent:      make(map[string]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.log.Error("create cache dir", "dir", dir, "error", err)
	}
	c.load()
	return c
}

func (c *Cache) newsPath() string     { return filepath.Join(c.dir, newsCacheFile) }
func (c *Cache) responsePath() string { return filepath.Join(c.dir, lastResponseFile) }

func (c *Cache) load() {
	var nd newsDocument
	switch err := readJSON(c.newsPath(), &nd); {
	case err == nil:
		for _, id := range nd.NewsIDs {
			c.seen[id] = struct{}{}
		}
		for _, id := range nd.SentSummaryIDs {
			c.sent[id] = struct{}{}
		}
		c.totalProcessed = nd.TotalProcessed
		c.lastUpdate = nd.LastUpdate
		c.log.Info("news cache loaded", "ids", len(c.seen), "sent_summaries", len(c.sent))
	case errors.Is(err, fs.ErrNotExist):
	default:
		c.log.Error("load news cache, starting empty", "path", c.newsPath(), "error", err)
	}

	var rd responseDocument
	switch err := readJSON(c.responsePath(), &rd); {
	case err == nil:
		c.lastHash = rd.ResponseHash
		c.lastResponse = rd.Timestamp
		c.lastRespCount = rd.NewsCount
	case errors.Is(err, fs.ErrNotExist):
	default:
		c.log.Error("load last response, starting empty", "path", c.responsePath(), "error", err)
	}
}

// HasChanged fingerprints batch and compares it with the stored fingerprint.
// On a difference the new fingerprint, time and item count are stored and
// persisted before returning true.
func (c *Cache) HasChanged(batch []models.NewsItem) bool {
	hash := Fingerprint(batch)

	c.mu.Lock()
	defer c.mu.Unlock()

	if hash == c.lastHash {
		return false
	}
	now := c.now()
	c.lastHash = hash
	c.lastResponse = &now
	c.lastRespCount = len(batch)
	if err := c.saveResponse(); err != nil {
		c.log.Error("persist last response", "error", err)
	}
	return true
}

// FilterNew returns the items of batch whose key has not been seen, in input
// order, and records them. Items without an id are skipped. State is flushed
// once per call, and only when something new was recorded.
func (c *Cache) FilterNew(batch []models.NewsItem) []models.NewsItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []models.NewsItem
	for _, n := range batch {
		if n.ID == "" {
			continue
		}
		key := c.keyOf(n)
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		c.totalProcessed++
		fresh = append(fresh, n)
	}
	if len(fresh) == 0 {
		return nil
	}
	now := c.now()
	c.lastUpdate = &now
	if err := c.saveNews(); err != nil {
		c.log.Error("persist news cache", "error", err)
	}
	c.log.Info("new items detected", "count", len(fresh))
	return fresh
}

// HasSentSummary reports whether a digest-style post was already dispatched.
func (c *Cache) HasSentSummary(n models.NewsItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sent[c.keyOf(n)]
	return ok
}

// MarkSentSummary records a digest-style post as dispatched.
func (c *Cache) MarkSentSummary(n models.NewsItem) {
	if n.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.keyOf(n)
	if _, ok := c.sent[key]; ok {
		return
	}
	c.sent[key] = struct{}{}
	if err := c.saveNews(); err != nil {
		c.log.Error("persist sent summary mark", "error", err)
	}
}

// Stats returns counters and file locations.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalProcessed:    c.totalProcessed,
		UniqueIDs:         len(c.seen),
		SentSummaries:     len(c.sent),
		LastUpdate:        c.lastUpdate,
		LastResponseTime:  c.lastResponse,
		LastResponseCount: c.lastRespCount,
		LastResponseHash:  c.lastHash,
		NewsCacheFile:     c.newsPath(),
		LastResponseFile:  c.responsePath(),
	}
}

// Clear resets in-memory state and deletes both state files.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen = make(map[string]struct{})
	c.sent = make(map[string]struct{})
	c.totalProcessed = 0
	c.lastUpdate = nil
	c.lastHash = ""
	c.lastResponse = nil
	c.lastRespCount = 0

	var errs []error
	for _, p := range []string{c.newsPath(), c.responsePath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.log.Info("cache cleared")
	return nil
}

// Backup copies both state files into a new timestamped directory under the
// backup dir and returns its path. Missing state files are skipped.
func (c *Cache) Backup() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := filepath.Join(c.backupDir, "cache_backup_"+c.now().Format("20060102_150405"))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	for _, name := range []string{newsCacheFile, lastResponseFile} {
		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dst, name), data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	c.log.Info("cache backed up", "path", dst)
	return dst, nil
}

func (c *Cache) saveNews() error {
	doc := newsDocument{
		NewsIDs:        sortedKeys(c.seen),
		LastUpdate:     c.lastUpdate,
		TotalProcessed: c.totalProcessed,
		SentSummaryIDs: sortedKeys(c.sent),
	}
	return writeJSON(c.newsPath(), doc)
}

func (c *Cache) saveResponse() error {
	doc := responseDocument{
		Timestamp:    c.lastResponse,
		ResponseHash: c.lastHash,
		NewsCount:    c.lastRespCount,
	}
	return writeJSON(c.responsePath(), doc)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
