package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

type fingerprintEntry struct {
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	ID        string `json:"id"`
	Title     string `json:"title"`
}

// Fingerprint hashes the id, title, body and creation time of every item.
// Entries are sorted first, so the result does not depend on batch order.
func Fingerprint(batch []models.NewsItem) string {
	entries := make([]fingerprintEntry, len(batch))
	for i, n := range batch {
		entries[i] = fingerprintEntry{Content: n.Content, CreatedAt: n.CreatedAt, ID: n.ID, Title: n.Title}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Content != b.Content {
			return a.Content < b.Content
		}
		return a.CreatedAt < b.CreatedAt
	})
	data, _ := json.Marshal(entries) // strings only, cannot fail
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
