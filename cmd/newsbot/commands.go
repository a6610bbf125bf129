package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/datasource"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/notify"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/report"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/sentiment"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

const manualNewsCount = 3

// --- News Command ---

func newNewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Fetch the latest official items once and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			items, err := a.client.FetchLatest(ctx, cfg.Sources.PageSize)
			if err != nil {
				return err
			}
			official := datasource.OfficialOnly(items)
			if len(official) > manualNewsCount {
				official = official[:manualNewsCount]
			}

			w := cmd.OutOrStdout()
			heading(w, "📰 Latest official news (%d)", len(official))
			rows := make([][]string, 0, len(official))
			for _, n := range official {
				c := a.classifier.Classify(n)
				rows = append(rows, []string{
					n.ID,
					classifier.LevelLabel(c.Level),
					utils.Truncate(classifier.CleanTitle(n.Title), 60, "..."),
					utils.DisplayTimestamp(n.CreatedAt),
					n.URL,
				})
			}
			return renderTable(w, []string{"ID", "Level", "Title", "Created", "Link"}, rows)
		},
	}
}

// --- Report Command ---

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build one AI digest and print it (or send it with --send)",
		RunE: func(cmd *cobra.Command, args []string) error {
			send, _ := cmd.Flags().GetBool("send")
			a := newApp(cfg, logger)
			if send {
				if err := a.addDiscord(); err != nil {
					return err
				}
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()

			w := cmd.OutOrStdout()
			if send {
				d, err := orch.ReportCycle(ctx)
				if err != nil {
					return err
				}
				if d == nil {
					warnColor.Fprintln(w, "no items to report")
					return nil
				}
				okColor.Fprintf(w, "report sent (%d items, ai=%v)\n", d.NewsCount, d.UsedAI)
				return nil
			}

			d, ok, err := orch.BuildReport(ctx)
			if err != nil {
				return err
			}
			if !ok {
				warnColor.Fprintln(w, "no items to report")
				return nil
			}
			printDigest(cmd, d)
			if preview := a.builder.OneLiner(ctx, report.Items(d.Items), d.Market); preview != "" {
				fmt.Fprintln(w)
				heading(w, "한 줄 요약")
				fmt.Fprintln(w, preview)
			}
			return nil
		},
	}
	cmd.Flags().Bool("send", false, "deliver the report to Discord instead of printing it")
	return cmd
}

func printDigest(cmd *cobra.Command, d report.Digest) {
	w := cmd.OutOrStdout()
	card := notify.ReportCard(d).Embeds[0]
	heading(w, "%s", card.Title)
	source := "local summary"
	if d.UsedAI {
		source = "AI"
	}
	fmt.Fprintf(w, "%d items, %s, generated %s KST\n\n", d.NewsCount, source, utils.ToKST(d.GeneratedAt).Format("2006-01-02 15:04"))
	for _, f := range card.Fields {
		heading(w, "%s", f.Name)
		fmt.Fprintln(w, f.Value)
		fmt.Fprintln(w)
	}
}

// --- Status Command ---

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, secrets and cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			heading(w, "newsbot %s (%s)", version, commit)
			fmt.Fprintf(w, "Time (KST): %s\n\n", utils.NowKST().Format("2006-01-02 15:04:05"))

			channels := "discover by topic " + strconv.Quote(cfg.Discord.ChannelTopic)
			if len(cfg.Discord.ChannelIDs) > 0 {
				channels = strings.Join(cfg.Discord.ChannelIDs, ", ")
			}
			llmInfo := "disabled (local summary)"
			if cfg.LLM.Enabled() {
				llmInfo = cfg.LLM.Primary
				if cfg.LLM.Model != "" {
					llmInfo += " (" + cfg.LLM.Model + ")"
				}
			}
			api := "disabled"
			if cfg.API.Enabled {
				api = cfg.API.Addr()
			}

			heading(w, "Configuration")
			if err := renderTable(w, nil, [][]string{
				{"Channels", channels},
				{"Poll interval", cfg.Schedule.PollInterval.String()},
				{"Report interval", cfg.Schedule.ReportInterval.String()},
				{"Page size", strconv.Itoa(cfg.Sources.PageSize)},
				{"Report items", strconv.Itoa(cfg.Schedule.ReportMaxItems)},
				{"Breaking keywords", strings.Join(cfg.Classifier.BreakingKeywords, ", ")},
				{"Like threshold", strconv.Itoa(cfg.Classifier.ImportantLikeThreshold)},
				{"RSS feeds", strconv.Itoa(len(cfg.Sources.RSSFeeds))},
				{"LLM", llmInfo},
				{"Status server", api},
			}); err != nil {
				return err
			}
			fmt.Fprintln(w)

			heading(w, "Secrets")
			var rows [][]string
			for _, k := range config.CheckAPIKeys(cfg) {
				state := errColor.Sprint("not set")
				if k.IsSet {
					state = okColor.Sprintf("set (%s: %s)", k.Source, k.Masked)
				}
				rows = append(rows, []string{k.Name, state})
			}
			if err := renderTable(w, nil, rows); err != nil {
				return err
			}
			fmt.Fprintln(w)

			if err := cfg.Validate(); err != nil {
				printErr(w, err)
			}
			return printCacheStats(cmd, newApp(cfg, logger))
		},
	}
}

// --- Cache Command ---

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or manage the dedup cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache statistics",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printCacheStats(cmd, newApp(cfg, logger))
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every seen item and the last payload fingerprint",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := newApp(cfg, logger).cache.Clear(); err != nil {
					return err
				}
				okColor.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Copy the cache files into a timestamped backup directory",
			RunE: func(cmd *cobra.Command, args []string) error {
				dir, err := newApp(cfg, logger).cache.Backup()
				if err != nil {
					return err
				}
				okColor.Fprintf(cmd.OutOrStdout(), "cache backed up to %s\n", dir)
				return nil
			},
		},
	)
	return cmd
}

func printCacheStats(cmd *cobra.Command, a *app) error {
	w := cmd.OutOrStdout()
	st := a.cache.Stats()
	heading(w, "Cache")
	return renderTable(w, nil, [][]string{
		{"Seen items", strconv.Itoa(st.UniqueIDs)},
		{"Processed total", strconv.Itoa(st.TotalProcessed)},
		{"Digest posts sent", strconv.Itoa(st.SentSummaries)},
		{"Last update", formatTime(st.LastUpdate)},
		{"Last payload", formatTime(st.LastResponseTime)},
		{"Last payload items", strconv.Itoa(st.LastResponseCount)},
		{"News cache file", st.NewsCacheFile},
		{"Payload file", st.LastResponseFile},
	})
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return utils.ToKST(*t).Format("2006-01-02 15:04:05")
}

// --- Classify Command ---

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <title>",
		Short: "Show how a title would be classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			likes, _ := cmd.Flags().GetInt("likes")
			views, _ := cmd.Flags().GetInt("views")
			community, _ := cmd.Flags().GetBool("community")

			item := models.NewsItem{
				ID:        "probe",
				Title:     strings.Join(args, " "),
				Source:    models.SourceNews,
				LikeCount: likes,
				ViewCount: views,
			}
			if community {
				item.Source = models.SourceCommunity
			}

			cls := classifier.New(cfg.Classifier.BreakingKeywords, cfg.Classifier.ImportantLikeThreshold)
			c := cls.Classify(item)
			score, conf := sentiment.ScoreItem(item)

			w := cmd.OutOrStdout()
			return renderTable(w, nil, [][]string{
				{"Title", item.Title},
				{"Clean title", classifier.CleanTitle(item.Title)},
				{"Level", classifier.LevelLabel(c.Level) + " (" + string(c.Level) + ")"},
				{"Breaking", yesNo(cls.IsBreaking(item))},
				{"Pinned", yesNo(c.Pinned())},
				{"Digest style", yesNo(c.DigestStyle)},
				{"Sentiment", fmt.Sprintf("%s %+.2f (confidence %.2f)", sentiment.Label(score), score, conf)},
			})
		},
	}
	cmd.Flags().Int("likes", 0, "like count")
	cmd.Flags().Int("views", 0, "view count")
	cmd.Flags().Bool("community", false, "treat the item as a community post")
	return cmd
}
