package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/datasource"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/dedup"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/metrics"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/notify"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/report"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

type fakeSource struct {
	mu        sync.Mutex
	latest    []models.NewsItem
	latestErr error
	batch     []models.NewsItem
	batchErr  error
	polls     int
}

func (f *fakeSource) FetchLatest(ctx context.Context, pageSize int) ([]models.NewsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.latest, f.latestErr
}

func (f *fakeSource) FetchReportBatch(ctx context.Context, reportSize int) ([]models.NewsItem, error) {
	return f.batch, f.batchErr
}

func (f *fakeSource) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeFeeds struct{ items []models.NewsItem }

func (f fakeFeeds) Enabled() bool                               { return len(f.items) > 0 }
func (f fakeFeeds) Fetch(ctx context.Context) []models.NewsItem { return f.items }

type fakeMarket struct{ snap models.MarketSnapshot }

func (f fakeMarket) Collect(ctx context.Context) models.MarketSnapshot { return f.snap }

type fakeSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (f *fakeSender) Dispatch(ctx context.Context, msg notify.Message) (notify.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return notify.Result{}, notify.ErrNotDelivered
	}
	f.msgs = append(f.msgs, msg)
	return notify.Result{Receipts: []notify.Receipt{{Destination: "fake", ID: "1"}}}, nil
}

func (f *fakeSender) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type fixture struct {
	orch   *Orchestrator
	source *fakeSource
	sender *fakeSender
	cache  *dedup.Cache
	m      *metrics.Metrics
}

func newFixture(t *testing.T, snap models.MarketSnapshot, feeds FeedSource) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		source: &fakeSource{},
		sender: &fakeSender{},
		cache:  dedup.New(t.TempDir(), dedup.WithLogger(log)),
		m:      metrics.New(),
	}
	orch, err := New(Config{
		Source:     f.source,
		Feeds:      feeds,
		Market:     fakeMarket{snap: snap},
		Cache:      f.cache,
		Classifier: classifier.New(nil, 5),
		Selector:   report.NewSelector(30),
		Builder:    report.NewBuilder(nil, nil, report.WithBuilderLogger(log)),
		Sender:     f.sender,
		Metrics:    f.m,
		Logger:     log,
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func official(id, title string, likes int) models.NewsItem {
	return models.NewsItem{ID: id, Title: title, Source: models.SourceNews, LikeCount: likes, URL: datasource.DetailURL(models.SourceNews, id)}
}

func community(id, title string) models.NewsItem {
	return models.NewsItem{ID: id, Title: title, Source: models.SourceCommunity, URL: datasource.DetailURL(models.SourceCommunity, id)}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Source")
}

func TestPollCycleDeliversOfficialOnly(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{
		community("c1", "커뮤니티 글"),
		official("n1", "[속보] 연준 금리 동결", 0),
		official("n2", "애플 신제품", 10),
		official("n3", "일반 뉴스", 0),
	}

	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSent, res.Outcome)
	assert.Equal(t, 3, res.New)
	assert.Equal(t, 3, res.Delivered)
	assert.NotEmpty(t, res.CycleID)

	require.Len(t, f.sender.msgs, 3)
	assert.Equal(t, "@everyone ⚡ 연준 금리 동결", f.sender.msgs[0].Content)
	assert.True(t, f.sender.msgs[0].Pin)
	assert.Equal(t, "@everyone 🔥 애플 신제품", f.sender.msgs[1].Content)
	assert.True(t, f.sender.msgs[1].Pin)
	assert.Equal(t, "📈 일반 뉴스", f.sender.msgs[2].Content)
	assert.False(t, f.sender.msgs[2].Pin)

	assert.Equal(t, 4, f.cache.Stats().UniqueIDs, "community items are recorded as seen")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Classified.WithLabelValues("breaking")))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.m.SeenItems))
}

func TestPollCycleUnchangedPayload(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{official("n1", "뉴스", 0)}

	_, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, metrics.OutcomeUnchanged, res.Outcome)
	assert.Len(t, f.sender.msgs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.PollCycles.WithLabelValues(metrics.OutcomeUnchanged)))
}

func TestPollCycleChangedButNothingNew(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{official("n1", "뉴스", 0)}
	_, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)

	f.source.latest = []models.NewsItem{official("n1", "뉴스 (수정)", 0)}
	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeNoNew, res.Outcome)
	assert.Len(t, f.sender.msgs, 1)
}

func TestPollCycleSourceFailure(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latestErr = datasource.ErrBothSourcesFailed

	res, err := f.orch.PollCycle(context.Background())
	assert.ErrorIs(t, err, datasource.ErrBothSourcesFailed)
	assert.Equal(t, metrics.OutcomeFailed, res.Outcome)
	assert.Empty(t, f.sender.msgs)
}

func TestPollCycleDigestPointersSentOnce(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{
		community("c1", "장전 뉴스 한 줄 요약 모음"),
		community("c2", "잡담"),
	}

	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Digests)
	assert.Equal(t, metrics.OutcomeNoNew, res.Outcome)
	assert.Equal(t, []string{notify.KindDigest}, f.sender.kinds())

	f.source.latest = append(f.source.latest, community("c3", "또 다른 글"))
	res, err = f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Digests)
	assert.Len(t, f.sender.msgs, 1)
}

func TestPollCycleDigestRetriedAfterFailedDispatch(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{community("c1", "한 줄 요약 모음")}
	f.sender.fail = true

	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Digests)
	assert.False(t, f.cache.HasSentSummary(f.source.latest[0]))

	f.sender.fail = false
	res, err = f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Digests)
	assert.True(t, f.cache.HasSentSummary(f.source.latest[0]))
}

func TestPollCycleAllDeliveriesFail(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{official("n1", "뉴스", 0)}
	f.sender.fail = true

	res, err := f.orch.PollCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeFailed, res.Outcome)
	assert.Zero(t, res.Delivered)
}

func TestReportCycle(t *testing.T) {
	snap := models.MarketSnapshot{
		Nasdaq:    &models.IndexQuote{Symbol: "^IXIC", Price: 18000, Change: 180, ChangePct: 1.0, Stale: true},
		FearGreed: &models.FearGreed{Value: 60, Classification: "Greed"},
	}
	f := newFixture(t, snap, fakeFeeds{items: []models.NewsItem{{ID: "rss-1", Title: "RSS 헤드라인", Content: "피드 본문", Source: models.SourceFeed}}})
	c1, c2 := community("c1", "테슬라 급등"), community("c2", "엔비디아 실적")
	c1.Content, c2.Content = "인도량 호조", "데이터센터 매출"
	f.source.batch = []models.NewsItem{c1, c2}

	d, err := f.orch.ReportCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 3, d.NewsCount)
	assert.False(t, d.UsedAI)
	assert.Equal(t, "📈 AI 시장 리포트 - 나스닥 +1.00%", d.Title)

	require.Len(t, f.sender.msgs, 1)
	assert.Equal(t, notify.KindReport, f.sender.msgs[0].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.SummaryFallback))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.MarketStale.WithLabelValues("nasdaq")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.MarketStale.WithLabelValues("fear_greed")))

	st := f.orch.Status()
	assert.Equal(t, 1, st.ReportCount)
	require.NotNil(t, st.LastReport)
}

func TestReportCycleEmptyBatch(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)

	d, err := f.orch.ReportCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Empty(t, f.sender.msgs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ReportCycles.WithLabelValues(metrics.OutcomeEmpty)))
}

func TestReportCycleFetchError(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.batchErr = errors.New("HTTP 500")

	_, err := f.orch.ReportCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.sender.msgs)
}

func TestRunFiresImmediatelyAndStops(t *testing.T) {
	f := newFixture(t, models.MarketSnapshot{}, nil)
	f.source.latest = []models.NewsItem{official("n1", "뉴스", 0)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	require.Eventually(t, func() bool { return f.source.pollCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, f.orch.Status().PollCount, 1)
}
