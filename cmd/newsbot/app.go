package main

import (
	"fmt"
	"log/slog"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/bot"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/datasource"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/dedup"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/infra"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/llm"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/market"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/metrics"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/notify"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/report"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/stocks"
)

// app bundles the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	client     *datasource.Client
	feeds      *datasource.FeedReader
	market     *market.Collector
	cache      *dedup.Cache
	classifier *classifier.Classifier
	selector   *report.Selector
	builder    *report.Builder
	router     *llm.Router // nil without LLM keys
	metrics    *metrics.Metrics
	dispatcher *notify.Dispatcher
}

// newApp wires every component from configuration. Destinations are added
// by the commands that deliver.
func newApp(cfg *config.Config, log *slog.Logger) *app {
	hc := infra.NewHTTPClient(cfg.Sources.HTTPTimeout)
	m := metrics.New()

	a := &app{
		cfg: cfg,
		log: log,
		client: datasource.NewClient(cfg.Sources.CommunityURL, cfg.Sources.NewsURL,
			datasource.WithHTTPClient(hc),
			datasource.WithRateLimit(cfg.Sources.RateLimit),
			datasource.WithLogger(log),
		),
		feeds: datasource.NewFeedReader(cfg.Sources.RSSFeeds, hc, log),
		market: market.NewCollector(
			market.WithHTTPClient(hc),
			market.WithLogger(log),
		),
		cache: dedup.New(cfg.Cache.Dir,
			dedup.WithBackupDir(cfg.Cache.BackupDir),
			dedup.WithLogger(log),
		),
		classifier: classifier.New(cfg.Classifier.BreakingKeywords, cfg.Classifier.ImportantLikeThreshold),
		selector:   report.NewSelector(cfg.Schedule.ReportMaxItems),
		metrics:    m,
		dispatcher: notify.NewDispatcher(nil,
			notify.WithPacer(infra.NewPacer(cfg.Discord.SendDelay)),
			notify.WithMetrics(m),
			notify.WithDispatcherLogger(log),
		),
	}

	var gen report.Generator
	if cfg.LLM.Enabled() {
		router, err := llm.NewRouterFromConfig(cfg.LLM, log)
		if err != nil {
			log.Warn("LLM unavailable, reports use the local summary", "error", err)
		} else {
			a.router = router
			gen = router
		}
	} else {
		log.Info("no LLM key configured, reports use the local summary")
	}
	a.builder = report.NewBuilder(gen, stocks.Default(), report.WithBuilderLogger(log))
	return a
}

// addDiscord registers the Discord destination.
func (a *app) addDiscord() error {
	if a.cfg.Discord.Token == "" {
		return config.ErrMissingToken
	}
	a.dispatcher.Add(notify.NewDiscord(a.cfg.Discord.Token,
		notify.WithChannels(a.cfg.Discord.ChannelIDs...),
		notify.WithChannelTopic(a.cfg.Discord.ChannelTopic),
		notify.WithDiscordLogger(a.log),
	))
	return nil
}

// orchestrator builds the poll/report orchestrator over the app's components.
func (a *app) orchestrator() (*bot.Orchestrator, error) {
	o, err := bot.New(bot.Config{
		Source:         a.client,
		Feeds:          a.feeds,
		Market:         a.market,
		Cache:          a.cache,
		Classifier:     a.classifier,
		Selector:       a.selector,
		Builder:        a.builder,
		Sender:         a.dispatcher,
		Metrics:        a.metrics,
		Logger:         a.log,
		PageSize:       a.cfg.Sources.PageSize,
		ReportSize:     a.cfg.Schedule.ReportMaxItems,
		PollInterval:   a.cfg.Schedule.PollInterval,
		ReportInterval: a.cfg.Schedule.ReportInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return o, nil
}
