// Command summarize-local runs the summarizer helper against a PDF on disk,
// outside the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Elyes-Bali/UniProfs-UI/app/config"
	"github.com/Elyes-Bali/UniProfs-UI/app/extract"
	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

func main() {
	focus := flag.String("focus", models.DefaultSummaryFocus, "summary focus")
	language := flag.String("language", models.DefaultSummaryLanguage, "summary language")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: summarize-local [-focus F] [-language L] file.pdf")
		os.Exit(2)
	}

	start := time.Now()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Style: "console", Level: cfg.Logs.Level})

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("open pdf")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runner := extract.NewRunner(cfg.Extract.PythonBin, cfg.Extract.ScriptsDir, cfg.Extract.Timeout)
	settings := models.SummarizeSettings{Focus: *focus, Language: *language}
	summary, err := runner.Summarize(ctx, f, settings, func(p int) {
		log.Info().Int("progress", p).Msg("summarizing")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("summarize failed")
	}
	fmt.Println(summary)
	log.Info().Dur("took", time.Since(start)).Msg("done")
}
