// Package bot ties fetching, classification, dedup, reporting and delivery
// together on two timers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/datasource"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/dedup"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/metrics"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/notify"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/report"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultPageSize       = 20
	DefaultReportSize     = 30
	DefaultPollInterval   = 10 * time.Second
	DefaultReportInterval = time.Hour
)

// NewsSource fetches items from the upstream news APIs.
type NewsSource interface {
	FetchLatest(ctx context.Context, pageSize int) ([]models.NewsItem, error)
	FetchReportBatch(ctx context.Context, reportSize int) ([]models.NewsItem, error)
}

// FeedSource supplies extra report items. Fetch never fails.
type FeedSource interface {
	Enabled() bool
	Fetch(ctx context.Context) []models.NewsItem
}

// MarketSource collects a market snapshot. Collect never fails.
type MarketSource interface {
	Collect(ctx context.Context) models.MarketSnapshot
}

// Sender delivers a message to every destination.
type Sender interface {
	Dispatch(ctx context.Context, msg notify.Message) (notify.Result, error)
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Source     NewsSource
	Feeds      FeedSource // optional
	Market     MarketSource
	Cache      *dedup.Cache
	Classifier *classifier.Classifier
	Selector   *report.Selector
	Builder    *report.Builder
	Sender     Sender
	Metrics    *metrics.Metrics // optional
	Logger     *slog.Logger

	PageSize       int
	ReportSize     int
	PollInterval   time.Duration
	ReportInterval time.Duration
}

// PollResult summarizes one poll cycle.
type PollResult struct {
	CycleID   string        `json:"cycle_id"`
	Outcome   string        `json:"outcome"`
	Fetched   int           `json:"fetched"`
	New       int           `json:"new"`
	Delivered int           `json:"delivered"`
	Digests   int           `json:"digests"`
	Duration  time.Duration `json:"duration"`
}

// Status is a snapshot of the orchestrator's recent activity.
type Status struct {
	StartedAt      time.Time      `json:"started_at"`
	PollInterval   string         `json:"poll_interval"`
	ReportInterval string         `json:"report_interval"`
	LastPoll       *PollResult    `json:"last_poll,omitempty"`
	LastPollAt     *time.Time     `json:"last_poll_at,omitempty"`
	LastReportAt   *time.Time     `json:"last_report_at,omitempty"`
	LastReport     *report.Digest `json:"last_report,omitempty"`
	PollCount      int            `json:"poll_count"`
	ReportCount    int            `json:"report_count"`
	Delivered      int            `json:"delivered"`
}

// Orchestrator runs the poll and report cycles.
type Orchestrator struct {
	cfg Config
	log *slog.Logger

	pollMu   sync.Mutex // one poll cycle at a time
	reportMu sync.Mutex // one report cycle at a time

	mu     sync.RWMutex
	status Status
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var missing []string
	if cfg.Source == nil {
		missing = append(missing, "Source")
	}
	if cfg.Cache == nil {
		missing = append(missing, "Cache")
	}
	if cfg.Classifier == nil {
		missing = append(missing, "Classifier")
	}
	if cfg.Selector == nil {
		missing = append(missing, "Selector")
	}
	if cfg.Builder == nil {
		missing = append(missing, "Builder")
	}
	if cfg.Market == nil {
		missing = append(missing, "Market")
	}
	if cfg.Sender == nil {
		missing = append(missing, "Sender")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bot: missing collaborators: %v", missing)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ReportSize <= 0 {
		cfg.ReportSize = DefaultReportSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		cfg: cfg,
		log: cfg.Logger,
		status: Status{
			StartedAt:      time.Now(),
			PollInterval:   cfg.PollInterval.String(),
			ReportInterval: cfg.ReportInterval.String(),
		},
	}, nil
}

// Status returns a copy of the current status.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// PollCycle fetches the latest items once, posts unsent digest pointers,
// and delivers new official items as cards. Community items are recorded
// as seen but only feed the report path.
func (o *Orchestrator) PollCycle(ctx context.Context) (PollResult, error) {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()

	start := time.Now()
	res := PollResult{CycleID: uuid.NewString()}
	log := o.log.With("cycle", res.CycleID, "kind", "poll")

	finish := func(outcome string, err error) (PollResult, error) {
		res.Outcome = outcome
		res.Duration = time.Since(start)
		o.cfg.Metrics.RecordPoll(outcome, res.Duration)
		o.cfg.Metrics.SetSeen(o.cfg.Cache.Stats().UniqueIDs)
		o.recordPoll(res)
		log.Debug("poll cycle finished", "outcome", outcome, "new", res.New, "delivered", res.Delivered, "duration", res.Duration)
		return res, err
	}

	items, err := o.cfg.Source.FetchLatest(ctx, o.cfg.PageSize)
	if err != nil {
		log.Warn("fetch failed, skipping cycle", "error", err)
		return finish(metrics.OutcomeFailed, err)
	}
	res.Fetched = len(items)
	if len(items) == 0 {
		return finish(metrics.OutcomeEmpty, nil)
	}

	res.Digests = o.sendDigestPointers(ctx, log, items)

	if !o.cfg.Cache.HasChanged(items) {
		return finish(metrics.OutcomeUnchanged, nil)
	}

	fresh := o.cfg.Cache.FilterNew(items)
	official := datasource.OfficialOnly(fresh)
	res.New = len(official)
	if len(official) == 0 {
		return finish(metrics.OutcomeNoNew, nil)
	}

	for _, n := range official {
		if ctx.Err() != nil {
			return finish(metrics.OutcomeFailed, ctx.Err())
		}
		c := o.cfg.Classifier.Classify(n)
		o.cfg.Metrics.RecordClassified(string(c.Level))
		if _, err := o.cfg.Sender.Dispatch(ctx, notify.NewsCard(n, c)); err != nil {
			log.Error("news card not delivered", "id", n.ID, "error", err)
			continue
		}
		res.Delivered++
		log.Info("news delivered", "id", n.ID, "level", c.Level, "title", n.Title)
	}
	if res.Delivered == 0 {
		return finish(metrics.OutcomeFailed, nil)
	}
	return finish(metrics.OutcomeSent, nil)
}

// sendDigestPointers posts community digest posts not sent before. A post
// is marked only after a successful dispatch.
func (o *Orchestrator) sendDigestPointers(ctx context.Context, log *slog.Logger, items []models.NewsItem) int {
	sent := 0
	for _, n := range datasource.CommunityOnly(items) {
		if !classifier.IsDigestStyle(n.Title) || o.cfg.Cache.HasSentSummary(n) {
			continue
		}
		if _, err := o.cfg.Sender.Dispatch(ctx, notify.DigestPointerCard(n)); err != nil {
			log.Warn("digest pointer not delivered", "id", n.ID, "error", err)
			continue
		}
		o.cfg.Cache.MarkSentSummary(n)
		sent++
	}
	return sent
}

// BuildReport assembles a digest from the community batch, optional feeds
// and a market snapshot. ok is false when there was nothing to report.
func (o *Orchestrator) BuildReport(ctx context.Context) (d report.Digest, ok bool, err error) {
	batch, err := o.cfg.Source.FetchReportBatch(ctx, o.cfg.ReportSize)
	if err != nil {
		return report.Digest{}, false, fmt.Errorf("fetch report batch: %w", err)
	}
	if o.cfg.Feeds != nil && o.cfg.Feeds.Enabled() {
		batch = append(batch, o.cfg.Feeds.Fetch(ctx)...)
	}
	if len(batch) == 0 {
		return report.Digest{}, false, nil
	}

	var (
		g      errgroup.Group
		scored []models.ScoredItem
		snap   models.MarketSnapshot
	)
	g.Go(func() error {
		snap = o.cfg.Market.Collect(ctx)
		return nil
	})
	g.Go(func() error {
		scored = o.cfg.Selector.Select(batch)
		return nil
	})
	_ = g.Wait()

	o.cfg.Metrics.SetMarketState("nasdaq", snap.Nasdaq != nil, snap.Nasdaq != nil && snap.Nasdaq.Stale)
	o.cfg.Metrics.SetMarketState("fear_greed", snap.FearGreed != nil, snap.FearGreed != nil && snap.FearGreed.Stale)

	if len(scored) == 0 {
		return report.Digest{}, false, nil
	}
	d = o.cfg.Builder.Build(ctx, scored, snap)
	if !d.UsedAI {
		o.cfg.Metrics.RecordFallback()
	}
	return d, true, nil
}

// ReportCycle builds a digest and delivers it as a report card.
func (o *Orchestrator) ReportCycle(ctx context.Context) (*report.Digest, error) {
	o.reportMu.Lock()
	defer o.reportMu.Unlock()

	start := time.Now()
	log := o.log.With("cycle", uuid.NewString(), "kind", "report")
	log.Info("report cycle started")

	d, ok, err := o.BuildReport(ctx)
	switch {
	case err != nil:
		log.Error("report build failed", "error", err)
		o.cfg.Metrics.RecordReport(metrics.OutcomeFailed, time.Since(start))
		return nil, err
	case !ok:
		log.Info("no items for report")
		o.cfg.Metrics.RecordReport(metrics.OutcomeEmpty, time.Since(start))
		return nil, nil
	}

	if _, err := o.cfg.Sender.Dispatch(ctx, notify.ReportCard(d)); err != nil {
		log.Error("report not delivered", "error", err)
		o.cfg.Metrics.RecordReport(metrics.OutcomeFailed, time.Since(start))
		return &d, err
	}
	o.cfg.Metrics.RecordReport(metrics.OutcomeSent, time.Since(start))
	o.recordReport(d)
	log.Info("report delivered", "items", d.NewsCount, "ai", d.UsedAI, "duration", time.Since(start))
	return &d, nil
}

// Run starts both loops, each firing immediately and then on its interval,
// until ctx is cancelled. Cycle errors are logged, never fatal.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("orchestrator started",
		"poll_interval", o.cfg.PollInterval,
		"report_interval", o.cfg.ReportInterval,
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop(ctx, o.cfg.PollInterval, func(ctx context.Context) {
			_, _ = o.PollCycle(ctx)
		})
	})
	g.Go(func() error {
		return loop(ctx, o.cfg.ReportInterval, func(ctx context.Context) {
			_, _ = o.ReportCycle(ctx)
		})
	})
	err := g.Wait()
	o.log.Info("orchestrator stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loop(ctx context.Context, every time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) recordPoll(res PollResult) {
	now := time.Now()
	o.mu.Lock()
	o.status.LastPoll = &res
	o.status.LastPollAt = &now
	o.status.PollCount++
	o.status.Delivered += res.Delivered + res.Digests
	o.mu.Unlock()
}

func (o *Orchestrator) recordReport(d report.Digest) {
	now := time.Now()
	o.mu.Lock()
	o.status.LastReport = &d
	o.status.LastReportAt = &now
	o.status.ReportCount++
	o.status.Delivered++
	o.mu.Unlock()
}
