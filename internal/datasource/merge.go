package datasource

import "github.com/choigod1023/american-stock-news-discord-bot/pkg/models"

// Merge combines one page from each source into a newest-first sequence.
//
// Each page arrives newest-last, so both are reversed individually, then the
// community page is placed before the newsroom page. Items are deduplicated by
// bare id, keeping the first occurrence, so a community item wins a collision.
// Items without an id are dropped.
func Merge(community, news []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(community)+len(news))
	seen := make(map[string]struct{}, cap(out))
	add := func(items []models.NewsItem, src models.Source) {
		for i := len(items) - 1; i >= 0; i-- {
			n := items[i]
			n.Source = src
			if n.ID == "" {
				continue
			}
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
	}
	add(community, models.SourceCommunity)
	add(news, models.SourceNews)
	return out
}

// OfficialOnly filters items to those from the newsroom source.
func OfficialOnly(items []models.NewsItem) []models.NewsItem {
	return bySource(items, models.SourceNews)
}

// CommunityOnly filters items to those from the community source.
func CommunityOnly(items []models.NewsItem) []models.NewsItem {
	return bySource(items, models.SourceCommunity)
}

func bySource(items []models.NewsItem, src models.Source) []models.NewsItem {
	var out []models.NewsItem
	for _, n := range items {
		if n.Source == src {
			out = append(out, n)
		}
	}
	return out
}
