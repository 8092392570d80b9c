// Command feedsearch crawls one or more URLs looking for RSS, Atom and JSON
// feeds, printing the discovered FeedInfo list as JSON and, optionally, an
// OPML subscription file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/feedsearch/feedsearch"
)

var (
	urlsFlag       []string
	opmlPath       string
	concurrency    int
	totalTimeout   time.Duration
	requestTimeout time.Duration
	maxDepth       int
	delay          time.Duration
	userAgent      string
	noTryURLs      bool
	noCrawlHosts   bool
	noRobots       bool
	stats          bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "feedsearch [urls...]",
	Short: "Discover RSS, Atom and JSON feeds for one or more sites.",
	Long: `feedsearch crawls one or more seed URLs, following links, sitemaps
and robots.txt, to discover and validate RSS, Atom and JSON feeds. Results
are printed as JSON; pass --opml to also write an OPML subscription file.`,
	Run: runSearch,
}

func init() {
	rootCmd.Flags().StringSliceVar(&urlsFlag, "urls", nil, "comma-separated list of seed URLs (alternative to positional args)")
	rootCmd.Flags().StringVar(&opmlPath, "opml", "", "write discovered feeds as an OPML file to this path")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size (default 10)")
	rootCmd.Flags().DurationVar(&totalTimeout, "total-timeout", 0, "global crawl deadline (default 10s)")
	rootCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 0, "per-request deadline (default 3s)")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "link depth cap (default 10)")
	rootCmd.Flags().DurationVar(&delay, "delay", 0, "minimum per-host request interval")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header (default \"Feedsearch Bot\")")
	rootCmd.Flags().BoolVar(&noTryURLs, "no-try-urls", false, "skip seeding common feed paths per origin")
	rootCmd.Flags().BoolVar(&noCrawlHosts, "no-crawl-hosts", false, "skip fetching the origin page of each seed")
	rootCmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt disallow directives")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "include crawl stats in a human-readable summary on stderr")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log crawl progress to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSearch(cmd *cobra.Command, args []string) {
	seeds := collectSeeds(args)
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one seed URL is required (positional or --urls)")
		os.Exit(1)
	}

	opts := feedsearch.NewOptions()
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}
	if totalTimeout > 0 {
		opts.TotalTimeout = totalTimeout
	}
	if requestTimeout > 0 {
		opts.RequestTimeout = requestTimeout
	}
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}
	if delay > 0 {
		opts.Delay = delay
	}
	if userAgent != "" {
		opts.UserAgent = userAgent
	}
	if noTryURLs {
		opts.TryURLs = nil
	} else {
		opts.TryURLs = feedsearch.DefaultTryURLs
	}
	opts.CrawlHosts = !noCrawlHosts
	opts.RespectRobots = !noRobots
	opts.IncludeStats = stats

	if verbose {
		logger := feedsearch.NewStderrLogger()
		opts.Logger = &logger
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.TotalTimeout+5*time.Second)
	defer cancel()

	info := feedsearch.SearchWithInfo(ctx, seeds, opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info.Feeds); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode results: %s\n", err)
		os.Exit(1)
	}

	if opmlPath != "" {
		doc, err := feedsearch.WriteOPML(info.Feeds, strings.Join(seeds, ", "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to build OPML: %s\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(opmlPath, doc, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write OPML file: %s\n", err)
			os.Exit(1)
		}
	}

	if stats && info.Stats != nil {
		fmt.Fprintf(os.Stderr, "crawled in %s, %s downloaded, %d requests issued\n",
			info.Stats.Duration.Round(time.Millisecond),
			humanize.Bytes(uint64(info.Stats.BytesDownloaded)),
			info.Stats.RequestsIssued,
		)
	}

	if info.RootError != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", info.RootError.URL, info.RootError.ErrorType)
		os.Exit(1)
	}
}

func collectSeeds(args []string) []string {
	seeds := make([]string, 0, len(args)+len(urlsFlag))
	seeds = append(seeds, args...)
	seeds = append(seeds, urlsFlag...)
	return seeds
}
