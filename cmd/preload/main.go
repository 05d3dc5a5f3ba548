package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/preload"
	"github.com/always-cache/preload/journal"
	"github.com/always-cache/preload/server"
)

var (
	// CLI flags
	configFilenameFlag string
	recursiveFlag      bool
	noPreloadFlag      bool
	journalFlag        string
	listenFlag         string
	timeoutFlag        time.Duration
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Config file (YAML)")
	flag.BoolVar(&recursiveFlag, "recursive", false, "Also preload the hints of preloaded responses")
	flag.BoolVar(&noPreloadFlag, "no-preload", false, "Do not preload")
	flag.StringVar(&journalFlag, "journal", "", "Journal DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&listenFlag, "listen", "", "Run the inspection server on this address instead of fetching")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Maximum time per fetch, preloads included")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config, err := loadConfig(configFilenameFlag, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}
	applyFlags(&config)

	hooks := make([]preload.Hook, 0)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks = append(hooks, preload.NewMetrics(registry))

	var j *journal.Journal
	if config.Journal != "" {
		filename := config.Journal
		if filename == "memory" {
			filename = ""
		}
		if j, err = journal.Open(filename); err != nil {
			log.Fatal().Err(err).Msg("Could not open journal")
		}
		hooks = append(hooks, j)
	}

	client := preload.New(preload.Config{
		Defaults: clientDefaults(config),
		Hooks:    hooks,
	})

	if config.Listen != "" {
		log.Info().Msgf("Serving inspection server on %s", config.Listen)
		err := http.ListenAndServe(config.Listen, server.New(server.Config{
			Client:   client,
			Journal:  j,
			Gatherer: registry,
			Timeout:  config.Timeout,
		}))
		closeJournal(j)
		if err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
		return
	}

	if flag.NArg() == 0 {
		closeJournal(j)
		flag.Usage()
		os.Exit(1)
	}
	_, err = fetchAll(context.Background(), client, flag.Args(), config.Timeout, log.Logger)
	closeJournal(j)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not fetch")
	}
}

// closeJournal writes the queued journal events.
// log.Fatal and os.Exit skip deferred calls, so it is called before every exit.
func closeJournal(j *journal.Journal) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		log.Error().Err(err).Msg("Could not close journal")
	}
}

// applyFlags overrides the config with the flags given on the command line.
func applyFlags(config *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "recursive":
			config.Recursive = recursiveFlag
		case "no-preload":
			config.NoPreload = noPreloadFlag
		case "journal":
			config.Journal = journalFlag
		case "listen":
			config.Listen = listenFlag
		case "timeout":
			config.Timeout = timeoutFlag
		}
	})
}

func clientDefaults(config Config) preload.Options {
	header := http.Header{}
	for k, v := range config.Headers {
		header.Set(k, v)
	}
	return preload.Options{
		BaseURL:               config.BaseURL,
		Header:                header,
		FetchPreload:          !config.NoPreload,
		FetchPreloadRecursive: !config.NoPreload && config.Recursive,
	}
}
