package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/examdigest/pkg/classifier"
	"github.com/umputun/examdigest/pkg/config"
	"github.com/umputun/examdigest/pkg/content"
	"github.com/umputun/examdigest/pkg/delivery"
	"github.com/umputun/examdigest/pkg/digest"
	"github.com/umputun/examdigest/pkg/ingest"
	"github.com/umputun/examdigest/pkg/repository"
	"github.com/umputun/examdigest/pkg/scheduler"
	"github.com/umputun/examdigest/pkg/scraper"
	"github.com/umputun/examdigest/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"examdigest.yml" description:"config file"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Printf("failed to load config %s: %v\n", opts.Config, err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.LLM.APIKey, cfg.SMTP.Password)

	log.Printf("[INFO] starting examdigest version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] examdigest failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline and blocks until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Printf("[WARN] database close error: %v", err)
		}
	}()

	// ingestion over all site adapters
	client := scraper.NewClient(cfg.Scrape.Timeout, cfg.Scrape.UserAgent)
	coordinator := ingest.NewCoordinator(scraper.All(client), repos.Article)

	// classification: rules always, AI on top when configured
	var enhancer classifier.Enhancer
	if cfg.LLM.Enabled() {
		enhancer = classifier.NewOpenAIClassifier(cfg.GetLLMConfig())
		log.Printf("[INFO] AI classification enabled, model %s", cfg.LLM.Model)
	} else {
		log.Printf("[INFO] AI classification disabled, rule-based only")
	}
	processor := classifier.NewProcessor(repos.Article, enhancer, cfg.LLM.BatchSize)

	// optional full-text extraction before classification
	var enricher scheduler.Enricher
	if cfg.Extraction.Enabled {
		extractor := content.NewHTTPExtractor(cfg.Extraction.Timeout, cfg.Extraction.UserAgent)
		enricher = content.NewEnricher(extractor, repos.Article, cfg.Extraction.MinTextLength)
		log.Printf("[INFO] full-text extraction enabled")
	}

	// digest assembly and delivery
	assembler := digest.NewAssembler(repos.Article, cfg.GetDigestConfig())
	renderer := digest.NewRenderer(cfg.Digest.BaseURL)
	sender := delivery.NewSMTPSender(cfg.GetSMTPConfig())
	dispatcher := delivery.NewDispatcher(assembler, renderer, sender, repos.Subscriber, repos.DeliveryLog,
		cfg.Digest.RequireVerified)

	sched := scheduler.NewScheduler(coordinator, processor, enricher, dispatcher, scheduler.Config{
		FetchInterval:    cfg.Schedule.FetchInterval,
		ClassifyInterval: cfg.Schedule.ClassifyInterval,
		DigestHour:       cfg.Schedule.DigestHour,
	})
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(cfg, coordinator, processor, dispatcher, repos.Subscriber, repos.ExamRequest, revision, debug)
	return srv.Run(ctx)
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
