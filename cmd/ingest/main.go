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
	"golang.org/x/sync/errgroup"

	"github.com/atomwire/ingest/pkg/adapter"
	"github.com/atomwire/ingest/pkg/ai"
	"github.com/atomwire/ingest/pkg/config"
	"github.com/atomwire/ingest/pkg/ingest"
	"github.com/atomwire/ingest/pkg/repository"
	"github.com/atomwire/ingest/pkg/schedule"
	"github.com/atomwire/ingest/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

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
		log.Fatalf("[ERROR] can't load config %s: %v", opts.Config, err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	setupLog(opts.Debug, cfg.AI.APIKey)
	log.Printf("[INFO] starting atomwire-ingest version %s", revision)

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
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, debug bool) error {
	db, err := repository.Open(repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Printf("[WARN] can't close database: %v", cerr)
		}
	}()

	sources := repository.NewSourceRepository(db)
	articles := repository.NewArticleRepository(db)
	runLogs := repository.NewRunLogRepository(db)

	adapters := adapter.NewRegistry(adapter.Config{
		Timeout:        cfg.Scrape.Timeout,
		BrowserTimeout: cfg.Scrape.BrowserTimeout,
		UserAgent:      cfg.Scrape.UserAgent,
		MaxArticles:    cfg.Scrape.MaxArticles,
	})

	group, ctx := errgroup.WithContext(ctx)

	var trigger *ingest.Trigger
	if cfg.AI.Enabled {
		processor := ai.NewProcessor(ai.Config{
			Endpoint:    cfg.AI.Endpoint,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		trigger = ingest.NewTrigger(articles, sources, processor, cfg.AI.Workers, cfg.AI.QueueSize)
		group.Go(func() error { return trigger.Run(ctx) })
		log.Printf("[INFO] downstream processing enabled with %d workers, model %s", cfg.AI.Workers, cfg.AI.Model)
	}

	orch := ingest.NewOrchestrator(ingest.Params{
		Sources:       sources,
		Articles:      articles,
		RunLogs:       runLogs,
		Adapters:      adapters,
		Notifier:      notifierOrNil(trigger),
		SourceTimeout: cfg.Scrape.SourceTimeout,
	})

	if cfg.Schedule.Enabled {
		runner := schedule.NewRunner(sources, orch, time.Duration(cfg.Schedule.SweepInterval)*time.Minute)
		runner.Start(ctx)
		defer runner.Stop()
	}

	srv := server.New(orch, sources, runLogs, cfg.Server.Listen, cfg.Server.Timeout, revision, debug)
	group.Go(func() error { return srv.Run(ctx) })

	return group.Wait()
}

// notifierOrNil avoids handing the orchestrator a typed nil interface
func notifierOrNil(t *ingest.Trigger) ingest.Notifier {
	if t == nil {
		return nil
	}
	return t
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
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

	secrets := make([]string, 0, len(secs))
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
