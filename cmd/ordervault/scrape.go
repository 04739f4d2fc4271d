package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"ordervault/lib/browser"
	"ordervault/lib/configutil"
	"ordervault/lib/serviceutil"
	"ordervault/lib/session"
	"ordervault/lib/telemetry"
	"ordervault/services/orders"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Headless bool `json:"headless"`
	// milliseconds
	Timeout              int    `json:"timeout"`
	DelayBetweenRequests int    `json:"delay_between_requests"`
	MaxRetries           int    `json:"max_retries"`
	Workers              int    `json:"workers"`
	DataDir              string `json:"data_dir"`
	OutputDir            string `json:"output_dir"`
	ScreenshotsDir       string `json:"screenshots_dir"`
	ListUrl              string `json:"list_url"`
}

func (c *Config) fillDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30000
	}
	if c.DelayBetweenRequests <= 0 {
		c.DelayBetweenRequests = 2000
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.DataDir, "output")
	}
	if c.ScreenshotsDir == "" {
		c.ScreenshotsDir = filepath.Join(c.DataDir, "screenshots")
	}
}

var (
	flagConfig    string
	flagDateStart string
	flagDateEnd   string
)

func init() {
	scrapeCmd.Flags().StringVar(&flagConfig, "config", "config.json5", "path to the configuration file")
	scrapeCmd.Flags().StringVar(&flagDateStart, "date-start", "", "start of the scraped date range (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVar(&flagDateEnd, "date-end", "", "end of the scraped date range (YYYY-MM-DD)")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Walk the order listing and extract every order not seen in a prior run.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](flagConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg.fillDefaults()
		if cfg.ListUrl == "" {
			serviceutil.Fatal("invalid config", fmt.Errorf("list_url is required"))
		}

		ctx := serviceutil.SignalContext()

		tel, err := telemetry.SetupFromEnv(ctx, "ordervault")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		if err == nil {
			defer tel.Shutdown(context.Background())
		}

		if err := runScrape(ctx, cfg); err != nil {
			serviceutil.Fatal("scrape run failed", err)
		}
	},
}

func runScrape(ctx context.Context, cfg Config) error {
	cookies, err := browser.LoadCookieFile(filepath.Join(cfg.DataDir, "cookies.json"))
	if err != nil {
		return fmt.Errorf("load session cookies: %w", err)
	}

	if err := probeSession(ctx, cfg, cookies); err != nil {
		return err
	}

	bsession := browser.NewSession(ctx, browser.Options{
		Headless: cfg.Headless,
		Timeout:  time.Duration(cfg.Timeout) * time.Millisecond,
	})
	defer bsession.Close()

	parent := bsession.NewContext()
	defer parent.Close()

	if err := parent.SetCookies(ctx, cookies); err != nil {
		return fmt.Errorf("import session into browser: %w", err)
	}
	if err := parent.Navigate(ctx, cfg.ListUrl); err != nil {
		return fmt.Errorf("reach order listing: %w", err)
	}

	pager, err := orders.NewPager(parent, cfg.ListUrl)
	if err != nil {
		return err
	}
	refs, err := pager.Walk(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "listing walk finished", "orders", len(refs))

	journal, err := orders.OpenJournal(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		return fmt.Errorf("open job journal: %w", err)
	}
	defer journal.Close()

	store := orders.DedupStore{
		OutputDir:      cfg.OutputDir,
		ScreenshotsDir: cfg.ScreenshotsDir,
		Journal:        journal,
	}
	index := store.Load(ctx)
	filtered := index.Filter(refs)
	slog.InfoContext(ctx, "filtered against prior runs",
		"known", index.Len(), "skipped", len(refs)-len(filtered), "remaining", len(filtered))

	if len(filtered) == 0 {
		slog.InfoContext(ctx, "nothing new to scrape")
		return nil
	}

	// one-time cookie copy from the parent session into each worker
	parentCookies, err := parent.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("export parent session cookies: %w", err)
	}

	pool := orders.NewPool(
		bsession,
		parentCookies,
		orders.ArtifactCache{Dir: cfg.ScreenshotsDir},
		journal,
		orders.PoolOptions{
			Workers: cfg.Workers,
			Delay:   time.Duration(cfg.DelayBetweenRequests) * time.Millisecond,
		},
	)
	records := pool.Run(ctx, filtered, index)

	snapshot := orders.BuildSnapshot(records, orders.DateRange{
		Start: flagDateStart,
		End:   flagDateEnd,
	}, time.Now())
	path, err := orders.PersistSnapshot(ctx, cfg.OutputDir, snapshot)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "snapshot persisted", "path", path, "screenshots", cfg.ScreenshotsDir)
	printSummary(snapshot)
	return nil
}

func probeSession(ctx context.Context, cfg Config, cookies []browser.Cookie) error {
	listUrl, err := url.Parse(cfg.ListUrl)
	if err != nil {
		return err
	}

	client, err := session.NewClient(session.ClientOptions{
		BaseUrl: fmt.Sprintf("%s://%s", listUrl.Scheme, listUrl.Host),
		Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	client.ImportCookies(cookies)

	probePath := listUrl.Path
	if listUrl.RawQuery != "" {
		probePath += "?" + listUrl.RawQuery
	}

	for attempt := 1; ; attempt++ {
		err = client.ProbeLoggedIn(ctx, probePath)
		if err == nil {
			return nil
		}
		if err == session.ErrNotLoggedIn || attempt >= cfg.MaxRetries {
			return fmt.Errorf("session probe: %w", err)
		}
		slog.WarnContext(ctx, "session probe failed, retrying", "attempt", attempt, "err", err)
		select {
		case <-time.After(time.Second * 2):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printSummary(snapshot orders.RunSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Order", "Date", "Amount", "Refund", "Net", "Items"})
	for _, record := range snapshot.Transactions {
		t.AppendRow(table.Row{
			record.ID,
			record.Date,
			fmt.Sprintf("$%.2f", record.Amount),
			fmt.Sprintf("$%.2f", record.RefundAmount),
			fmt.Sprintf("$%.2f", record.NetAmount),
			len(record.Items),
		})
	}
	t.AppendFooter(table.Row{
		"total", "", "", "",
		fmt.Sprintf("$%.2f", snapshot.Metadata.TotalAmount),
		snapshot.Metadata.TotalTransactions,
	})
	t.Render()
}
