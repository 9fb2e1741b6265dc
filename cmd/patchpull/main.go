// Command patchpull downloads device patch files from the Patchstorage API
// into a local directory, filtered by device platform.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/patchpull/patchpull/internal/config"
	"github.com/patchpull/patchpull/internal/downloader"
	"github.com/patchpull/patchpull/internal/logger"
	"github.com/patchpull/patchpull/internal/patchstorage"
	"github.com/patchpull/patchpull/internal/platform"
	"github.com/patchpull/patchpull/internal/pull"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	platformName := flag.String("p", "", "Platform to pull (slug or alias, see -list)")
	outputDir := flag.String("o", "", "Output directory (overrides config)")
	concurrency := flag.Int("concurrency", 0, "Parallel downloads (overrides config)")
	list := flag.Bool("list", false, "List supported platforms and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("patchpull " + Version)
		return 0
	}
	if *list {
		for _, p := range platform.All() {
			line := fmt.Sprintf("%-16s %s", p.Slug, p.Name)
			if len(p.Aliases) > 0 {
				line += fmt.Sprintf(" (aliases: %s)", strings.Join(p.Aliases, ", "))
			}
			fmt.Println(line)
		}
		return 0
	}

	if *platformName == "" {
		fmt.Fprintln(os.Stderr, "patchpull: -p <platform> is required (use -list to see supported platforms)")
		flag.Usage()
		return 2
	}

	plat, err := platform.Resolve(*platformName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "patchpull: %v\n", err)
		return 2
	}

	// Load .env before viper runs so PATCHPULL_ variables from it are
	// visible as environment overrides.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "patchpull: %v\n", err)
		return 2
	}
	if *outputDir != "" {
		cfg.Download.OutputDir = *outputDir
	}
	if *concurrency > 0 {
		cfg.Download.Concurrency = *concurrency
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := patchstorage.NewClient(cfg.Patchstorage, log.Logger)
	dl := downloader.New(cfg.Download, log.Logger)
	svc := pull.NewService(client, dl, cfg.Download.Concurrency, log.Logger)

	summary, err := svc.Run(ctx, plat)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "patchpull: interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "patchpull: %v\n", err)
		}
		return 1
	}

	printSummary(summary)
	if !summary.OK() {
		return 1
	}
	return 0
}

func printSummary(s *pull.Summary) {
	fmt.Printf("%s: %d patches, %d downloaded, %d skipped, %d failed, %d bytes written\n",
		s.Platform, s.Total, s.Downloaded, s.Skipped, s.Failed, s.BytesWritten)
	for _, res := range s.Results {
		if res.Err != nil {
			fmt.Printf("  FAILED %s (id %d): %v\n", res.Job.Slug, res.Job.PatchID, res.Err)
		}
	}
}
