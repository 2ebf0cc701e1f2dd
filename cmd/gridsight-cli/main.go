package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/gridsight/api/handler"
	"github.com/use-agent/gridsight/config"
	"github.com/use-agent/gridsight/export"
	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/scraper"
)

// gridsight-cli drives an interactive extraction session. The target
// dashboards sit behind a login that cannot be automated reliably, so
// the CLI opens a visible browser, lets the user sign in by hand, and
// only then runs the sampling pipeline against the live page.
func main() {
	app := &cli.App{
		Name:  "gridsight-cli",
		Usage: "extract per-item metrics from a grid dashboard after a manual login",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "dashboard URL with the content grid",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "login-url",
				Usage: "open this URL first for manual login, then navigate to --url",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output file path (extension picks the format unless --format is set)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format: csv or json",
			},
			&cli.BoolFlag{
				Name:  "enrich",
				Usage: "open each item's detail view to collect likes/comments/shares/saves",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "extraction deadline in seconds",
				Value: 180,
			},
			&cli.IntFlag{
				Name:  "max-passes",
				Usage: "override the sampling pass cap",
			},
			&cli.IntFlag{
				Name:  "settle-ms",
				Usage: "override the post-scroll settle delay in milliseconds",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "log errors only",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg := config.Load()
	// The whole point of the CLI is a human at the keyboard.
	cfg.Browser.Headless = false

	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer sc.Close()

	targetURL := c.String("url")
	openURL := targetURL
	if login := c.String("login-url"); login != "" {
		openURL = login
	}

	page, err := sc.OpenPage(openURL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	fmt.Println("A browser window is open. Log in if prompted.")
	fmt.Println("Press ENTER here when the page is ready.")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	if c.String("login-url") != "" {
		slog.Info("navigating to dashboard", "url", targetURL)
		if err := page.Navigate(targetURL); err != nil {
			return fmt.Errorf("navigate to dashboard: %w", err)
		}
		_ = page.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	req := &models.ExtractRequest{
		URL:           targetURL,
		Timeout:       c.Int("timeout"),
		EnrichDetails: c.Bool("enrich"),
		MaxPasses:     c.Int("max-passes"),
		SettleDelayMs: c.Int("settle-ms"),
	}
	req.Defaults()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	slog.Info("starting extraction", "url", targetURL, "enrich", req.EnrichDetails)
	outcome, err := sc.ExtractFromPage(ctx, page, req, handler.BuildOptions(cfg, req))
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	printSummary(outcome)

	if out := c.String("out"); out != "" {
		if err := save(out, c.String("format"), outcome.Records); err != nil {
			return err
		}
		fmt.Printf("Saved %d records to %s\n", len(outcome.Records), out)
	}
	return nil
}

func printSummary(outcome *scraper.Outcome) {
	fmt.Printf("\nExtracted %d records (strategy=%s, passes=%d)\n\n",
		len(outcome.Records), outcome.Strategy, outcome.Passes)
	for _, r := range outcome.Records {
		line := fmt.Sprintf("  %-10s views=%s", r.Label, orDash(r.Views))
		if r.Likes != nil || r.Comments != nil || r.Shares != nil || r.Saves != nil {
			line += fmt.Sprintf("  likes=%s comments=%s shares=%s saves=%s",
				orDash(r.Likes), orDash(r.Comments), orDash(r.Shares), orDash(r.Saves))
		}
		fmt.Println(line)
	}
}

func save(path, format string, records []models.PostMetricRecord) error {
	if format == "" {
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			format = "json"
		} else {
			format = "csv"
		}
	}
	switch format {
	case "json":
		return export.SaveJSON(path, records)
	case "csv":
		return export.SaveCSV(path, records)
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
