// ABOUTME: Entry point for the dictsub translation CLI.
// ABOUTME: Wires config, cache, history, and the OpenAI dispatcher into the pipeline.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chichu1439/dict-sub000/internal/cache"
	"github.com/chichu1439/dict-sub000/internal/config"
	"github.com/chichu1439/dict-sub000/internal/history"
	"github.com/chichu1439/dict-sub000/internal/metrics"
	"github.com/chichu1439/dict-sub000/internal/pending"
	"github.com/chichu1439/dict-sub000/internal/pipeline"
	"github.com/chichu1439/dict-sub000/internal/provider"
	"github.com/chichu1439/dict-sub000/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the config file.
// Priority: DICTSUB_CONFIG env var > XDG_CONFIG_HOME/dictsub/config.yaml > ~/.config/dictsub/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DICTSUB_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "dictsub", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "translate":
		err = runTranslate(ctx, os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "stats":
		err = runStats()
	case "clear":
		err = runClear()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: dictsub <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  translate [-t LANG] TEXT   Translate text with all configured providers")
	fmt.Println("  history [-n COUNT]         Show recent translations")
	fmt.Println("  stats                      Show persisted history statistics")
	fmt.Println("  clear                      Clear persisted history")
	fmt.Println("  version                    Print version")
}

func runTranslate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	target := fs.String("t", "", "target language (overrides config)")
	source := fs.String("s", "", "source language (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no text to translate")
	}
	text := strings.Join(fs.Args(), " ")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	sourceLang := cfg.Translation.SourceLang
	if *source != "" {
		sourceLang = *source
	}
	targetLang := cfg.Translation.TargetLang
	if *target != "" {
		targetLang = *target
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	guard := pending.NewGuard(cfg.Pending.TTL, logger)
	defer guard.Close()
	resultCache := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity, m, logger)

	var db *history.DB
	if cfg.History.Path != "" {
		db, err = history.OpenDB(cfg.History.Path)
		if err != nil {
			return err
		}
		defer db.Close()
	}
	store := history.NewStore(cfg.History.MaxRecords, cfg.History.PersistRecords, db, logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	profiles := make([]provider.Profile, 0, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		profiles = append(profiles, provider.Profile{
			Name:    p.Name,
			Model:   p.Model,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
		})
		names = append(names, p.Name)
	}
	dispatcher := provider.NewOpenAIDispatcher(profiles, logger)

	pipe := pipeline.New(guard, resultCache, store, dispatcher, m, logger)

	sess, err := pipe.Translate(ctx, &pipeline.Request{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Providers:  names,
	})
	if err != nil {
		return err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	printSession(sess.Snapshot())

	stats := pipe.CacheStats()
	fmt.Printf("\ncache: %d hits, %d misses, %d entries\n", stats.Hits, stats.Misses, stats.Entries)

	logMetrics(logger, registry)

	return store.Flush()
}

// logMetrics gathers the registry and logs every counter and gauge at debug
// level, so a single run's collectors are inspectable without a scrape
// endpoint.
func logMetrics(logger *slog.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("gathering metrics failed", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				logger.Debug("metric", "name", mf.GetName(), "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				logger.Debug("metric", "name", mf.GetName(), "value", m.GetGauge().GetValue())
			}
		}
	}
}

func printSession(snapshot map[string]session.ProviderState) {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	providerColor := color.New(color.FgCyan, color.Bold)
	errColor := color.New(color.FgRed)
	cachedColor := color.New(color.FgYellow)

	for _, name := range names {
		slot := snapshot[name]
		providerColor.Printf("── %s ", name)
		if slot.FromCache {
			cachedColor.Print("(cached)")
		}
		fmt.Println()
		if slot.Err != "" {
			errColor.Printf("error: %s\n", slot.Err)
			continue
		}
		fmt.Println(slot.Text)
	}
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	count := fs.Int("n", 20, "number of records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}

	db, err := history.OpenDB(cfg.History.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.LoadRecent(*count)
	if err != nil {
		return err
	}

	star := color.New(color.FgYellow).Sprint("★")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tLANGS\t\tSOURCE\tTRANSLATION")
	for _, rec := range records {
		fav := " "
		if rec.IsFavorite {
			fav = star
		}
		fmt.Fprintf(w, "%s\t%s→%s\t%s\t%s\t%s\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04"),
			rec.SourceLang, rec.TargetLang,
			fav,
			truncate(rec.SourceText, 40),
			truncate(rec.TargetText, 60))
	}
	return w.Flush()
}

// historySummary aggregates the persisted history for the stats command.
type historySummary struct {
	Records   int
	Favorites int
	LangPairs map[string]int // "src→tgt" -> count
	Newest    time.Time
}

func summarizeHistory(records []*history.Record) historySummary {
	s := historySummary{LangPairs: make(map[string]int)}
	for _, rec := range records {
		s.Records++
		if rec.IsFavorite {
			s.Favorites++
		}
		s.LangPairs[rec.SourceLang+"→"+rec.TargetLang]++
		if rec.Timestamp.After(s.Newest) {
			s.Newest = rec.Timestamp
		}
	}
	return s
}

func runStats() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}

	db, err := history.OpenDB(cfg.History.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.LoadRecent(cfg.History.MaxRecords)
	if err != nil {
		return err
	}
	s := summarizeHistory(records)

	fmt.Printf("records:   %d\n", s.Records)
	fmt.Printf("favorites: %d\n", s.Favorites)
	if !s.Newest.IsZero() {
		fmt.Printf("newest:    %s\n", s.Newest.Local().Format("2006-01-02 15:04"))
	}

	pairs := make([]string, 0, len(s.LangPairs))
	for pair := range s.LangPairs {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		fmt.Printf("  %s: %d\n", pair, s.LangPairs[pair])
	}
	return nil
}

func runClear() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}

	db, err := history.OpenDB(cfg.History.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveAll(nil); err != nil {
		return err
	}
	fmt.Println("History cleared.")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
