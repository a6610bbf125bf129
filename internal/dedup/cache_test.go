package dedup

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, opts ...Option) (*Cache, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return fixed }),
		WithBackupDir(filepath.Join(filepath.Dir(dir), "cache_backup")),
	}
	return New(dir, append(base, opts...)...), dir
}

func item(id string, src models.Source) models.NewsItem {
	return models.NewsItem{ID: id, Title: "title " + id, Content: "body " + id, CreatedAt: "2025-03-01T09:00:00Z", Source: src}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a, b, c := item("1", models.SourceNews), item("2", models.SourceNews), item("3", models.SourceCommunity)
	assert.Equal(t, Fingerprint([]models.NewsItem{a, b, c}), Fingerprint([]models.NewsItem{c, a, b}))

	changed := b
	changed.Title = "edited"
	assert.NotEqual(t, Fingerprint([]models.NewsItem{a, b, c}), Fingerprint([]models.NewsItem{a, changed, c}))
}

func TestFingerprintIgnoresEngagement(t *testing.T) {
	a := item("1", models.SourceNews)
	liked := a
	liked.LikeCount = 99
	assert.Equal(t, Fingerprint([]models.NewsItem{a}), Fingerprint([]models.NewsItem{liked}))
}

func TestHasChanged(t *testing.T) {
	c, dir := newTestCache(t)
	batch := []models.NewsItem{item("1", models.SourceNews), item("2", models.SourceNews)}

	assert.True(t, c.HasChanged(batch))
	assert.False(t, c.HasChanged([]models.NewsItem{batch[1], batch[0]}))

	var doc responseDocument
	data, err := os.ReadFile(filepath.Join(dir, lastResponseFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, Fingerprint(batch), doc.ResponseHash)
	assert.Equal(t, 2, doc.NewsCount)
	require.NotNil(t, doc.Timestamp)

	assert.True(t, c.HasChanged(batch[:1]))
	assert.Equal(t, 1, c.Stats().LastResponseCount)
}

func TestFilterNewConverges(t *testing.T) {
	c, _ := newTestCache(t)
	batch := []models.NewsItem{item("3", models.SourceNews), item("1", models.SourceNews), item("2", models.SourceNews)}

	first := c.FilterNew(batch)
	require.Len(t, first, 3)
	assert.Equal(t, []string{"3", "1", "2"}, ids(first), "input order preserved")

	assert.Empty(t, c.FilterNew(batch))

	more := append(batch, item("4", models.SourceNews))
	assert.Equal(t, []string{"4"}, ids(c.FilterNew(more)))

	st := c.Stats()
	assert.Equal(t, 4, st.TotalProcessed)
	assert.Equal(t, 4, st.UniqueIDs)
	require.NotNil(t, st.LastUpdate)
}

func TestFilterNewSkipsMissingIDs(t *testing.T) {
	c, _ := newTestCache(t)
	got := c.FilterNew([]models.NewsItem{{Title: "no id"}, item("1", models.SourceNews)})
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestFilterNewNamespacesBySource(t *testing.T) {
	c, _ := newTestCache(t)
	require.Len(t, c.FilterNew([]models.NewsItem{item("7", models.SourceCommunity)}), 1)
	assert.Len(t, c.FilterNew([]models.NewsItem{item("7", models.SourceNews)}), 1)
}

func TestFilterNewBareIDs(t *testing.T) {
	c, _ := newTestCache(t, WithBareIDs())
	require.Len(t, c.FilterNew([]models.NewsItem{item("7", models.SourceCommunity)}), 1)
	assert.Empty(t, c.FilterNew([]models.NewsItem{item("7", models.SourceNews)}))
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	c, dir := newTestCache(t)
	c.FilterNew([]models.NewsItem{item("1", models.SourceNews), item("2", models.SourceCommunity)})
	c.HasChanged([]models.NewsItem{item("1", models.SourceNews)})
	c.MarkSentSummary(item("9", models.SourceCommunity))

	reopened := New(dir, WithLogger(quietLogger()))
	assert.Empty(t, reopened.FilterNew([]models.NewsItem{item("1", models.SourceNews)}))
	assert.False(t, reopened.HasChanged([]models.NewsItem{item("1", models.SourceNews)}))
	assert.True(t, reopened.HasSentSummary(item("9", models.SourceCommunity)))
	assert.Equal(t, 2, reopened.Stats().TotalProcessed)
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, newsCacheFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, lastResponseFile), []byte("[]"), 0o644))

	c := New(dir, WithLogger(quietLogger()))
	st := c.Stats()
	assert.Zero(t, st.UniqueIDs)
	assert.Empty(t, st.LastResponseHash)
	assert.Len(t, c.FilterNew([]models.NewsItem{item("1", models.SourceNews)}), 1)
}

func TestSentSummaryMarks(t *testing.T) {
	c, _ := newTestCache(t)
	post := item("5", models.SourceCommunity)

	assert.False(t, c.HasSentSummary(post))
	c.MarkSentSummary(post)
	assert.True(t, c.HasSentSummary(post))
	c.MarkSentSummary(post)
	assert.Equal(t, 1, c.Stats().SentSummaries)

	// Independent of the seen-set.
	assert.Len(t, c.FilterNew([]models.NewsItem{post}), 1)
}

func TestClear(t *testing.T) {
	c, dir := newTestCache(t)
	c.FilterNew([]models.NewsItem{item("1", models.SourceNews)})
	c.HasChanged([]models.NewsItem{item("1", models.SourceNews)})

	require.NoError(t, c.Clear())
	assert.NoFileExists(t, filepath.Join(dir, newsCacheFile))
	assert.NoFileExists(t, filepath.Join(dir, lastResponseFile))
	assert.Zero(t, c.Stats().UniqueIDs)
	assert.Len(t, c.FilterNew([]models.NewsItem{item("1", models.SourceNews)}), 1)

	// Clearing an already empty directory is not an error.
	empty, _ := newTestCache(t)
	assert.NoError(t, empty.Clear())
}

func TestBackup(t *testing.T) {
	c, dir := newTestCache(t)
	c.FilterNew([]models.NewsItem{item("1", models.SourceNews)})

	path, err := c.Backup()
	require.NoError(t, err)
	assert.Equal(t, "cache_backup_20250301_093000", filepath.Base(path))

	want, err := os.ReadFile(filepath.Join(dir, newsCacheFile))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(path, newsCacheFile))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoFileExists(t, filepath.Join(path, lastResponseFile))
}

func TestConcurrentFilterNew(t *testing.T) {
	c, _ := newTestCache(t)
	batch := []models.NewsItem{item("1", models.SourceNews), item("2", models.SourceNews), item("3", models.SourceNews)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(c.FilterNew(batch))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, total, "each id delivered exactly once")
}

func ids(items []models.NewsItem) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}
