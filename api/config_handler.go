package api

import (
	"net/http"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// ConfigView is the running configuration without secrets.
type ConfigView struct {
	ChannelIDs             []string           `json:"channel_ids,omitempty"`
	ChannelTopic           string             `json:"channel_topic"`
	SendDelay              string             `json:"send_delay"`
	CommunityURL           string             `json:"community_url"`
	NewsURL                string             `json:"news_url"`
	PageSize               int                `json:"page_size"`
	RSSFeeds               []string           `json:"rss_feeds,omitempty"`
	PollInterval           string             `json:"poll_interval"`
	ReportInterval         string             `json:"report_interval"`
	ReportMaxItems         int                `json:"report_max_items"`
	BreakingKeywords       []string           `json:"breaking_keywords"`
	ImportantLikeThreshold int                `json:"important_like_threshold"`
	CacheDir               string             `json:"cache_dir"`
	LLMPrimary             string             `json:"llm_primary"`
	LLMModel               string             `json:"llm_model,omitempty"`
	Keys                   []config.KeyStatus `json:"keys"`
}

// handleGetConfig returns the running configuration. Secrets appear only
// as masked key status entries.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	c := s.cfg
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigView{
			ChannelIDs:             c.Discord.ChannelIDs,
			ChannelTopic:           c.Discord.ChannelTopic,
			SendDelay:              c.Discord.SendDelay.String(),
			CommunityURL:           c.Sources.CommunityURL,
			NewsURL:                c.Sources.NewsURL,
			PageSize:               c.Sources.PageSize,
			RSSFeeds:               c.Sources.RSSFeeds,
			PollInterval:           c.Schedule.PollInterval.String(),
			ReportInterval:         c.Schedule.ReportInterval.String(),
			ReportMaxItems:         c.Schedule.ReportMaxItems,
			BreakingKeywords:       s.cls.Keywords(),
			ImportantLikeThreshold: s.cls.LikeThreshold(),
			CacheDir:               c.Cache.Dir,
			LLMPrimary:             c.LLM.Primary,
			LLMModel:               c.LLM.Model,
			Keys:                   config.CheckAPIKeys(c),
		},
	})
}

// classifyItem turns a probe request into a news item.
func classifyItem(req ClassifyRequest) models.NewsItem {
	src := models.SourceNews
	if req.Source == string(models.SourceCommunity) {
		src = models.SourceCommunity
	}
	return models.NewsItem{
		ID:        "probe",
		Title:     req.Title,
		Content:   req.Content,
		Source:    src,
		LikeCount: req.Likes,
		ViewCount: req.Views,
		Tags:      req.Tags,
	}
}
