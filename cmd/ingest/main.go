// Package main provides the bar ingestion entry point: loads daily
// OHLCV history from a CSV directory or an HTTP API, or folds live
// quotes from a websocket stream, into storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/marketdata"
	"equity-window-lab/internal/observability"
	"equity-window-lab/internal/storage"
	"equity-window-lab/internal/storage/memory"
	"equity-window-lab/internal/storage/migrations"
	pgstore "equity-window-lab/internal/storage/postgres"
)

func main() {
	source := flag.String("source", "csv", "Bar source: csv, api, or stream")
	csvDir := flag.String("csv-dir", "data", "Directory with per-symbol CSV files")
	apiEndpoint := flag.String("api-endpoint", "", "Daily-history API base URL")
	apiKey := flag.String("api-key", "", "Daily-history API key")
	wsEndpoint := flag.String("ws-endpoint", "", "Websocket quote endpoint (stream source)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to fetch (api and stream sources)")
	fromDate := flag.String("from", "", "Start date for api fetch (2006-01-02)")
	toDate := flag.String("to", "", "End date for api fetch (2006-01-02)")
	streamFor := flag.Duration("stream-for", 0, "How long to consume quotes before flushing (stream source, 0 = until signal)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling ingestion...", sig)
		cancel()
	}()

	var metrics *observability.Metrics
	if *metricsAddr != "" {
		metrics = observability.NewMetrics("")
		go serveMetrics(logger, *metricsAddr)
	}

	bars, err := loadBars(ctx, logger, metrics, loadConfig{
		source:      *source,
		csvDir:      *csvDir,
		apiEndpoint: *apiEndpoint,
		apiKey:      *apiKey,
		wsEndpoint:  *wsEndpoint,
		symbols:     splitSymbols(*symbols),
		fromDate:    *fromDate,
		toDate:      *toDate,
		streamFor:   *streamFor,
	})
	if err != nil {
		logger.Fatalf("Load bars: %v", err)
	}
	if len(bars) == 0 {
		logger.Fatal("No bars loaded")
	}
	logger.Printf("Loaded %d bars", len(bars))
	if metrics != nil {
		metrics.BarsLoaded.Add(float64(len(bars)))
	}

	store, dbName, closeStore, err := openBarStore(ctx, logger, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Open store: %v", err)
	}
	defer closeStore()

	insertStart := time.Now()
	err = store.InsertBulk(ctx, bars)
	metrics.RecordDBQuery(dbName, "insert_bars", time.Since(insertStart).Seconds(), err)
	if err != nil {
		logger.Fatalf("Store bars: %v", err)
	}
	if metrics != nil {
		metrics.BarsStored.Add(float64(len(bars)))
	}

	listed, err := store.ListSymbols(ctx)
	if err != nil {
		logger.Fatalf("List symbols: %v", err)
	}
	logger.Printf("Stored %d bars across %d symbols", len(bars), len(listed))
}

type loadConfig struct {
	source      string
	csvDir      string
	apiEndpoint string
	apiKey      string
	wsEndpoint  string
	symbols     []string
	fromDate    string
	toDate      string
	streamFor   time.Duration
}

// loadBars loads from the configured source.
func loadBars(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg loadConfig) ([]*domain.Bar, error) {
	switch cfg.source {
	case "csv":
		logger.Printf("Loading CSV files from %s", cfg.csvDir)
		return marketdata.LoadCSVDir(cfg.csvDir)

	case "api":
		if cfg.apiEndpoint == "" {
			return nil, fmt.Errorf("api source requires --api-endpoint")
		}
		if len(cfg.symbols) == 0 {
			return nil, fmt.Errorf("api source requires --symbols")
		}
		start, end, err := parseDateRange(cfg.fromDate, cfg.toDate)
		if err != nil {
			return nil, err
		}

		logger.Printf("Fetching %d symbols from %s", len(cfg.symbols), cfg.apiEndpoint)
		client := marketdata.NewHTTPClient(cfg.apiEndpoint, cfg.apiKey)
		bars, skipped, err := client.DailyHistoryAll(ctx, cfg.symbols, start, end)
		if err != nil {
			return nil, err
		}
		for _, s := range skipped {
			logger.Printf("Skipped %s", s)
			if metrics != nil {
				metrics.IngestionErrors.WithLabelValues("api").Inc()
			}
		}
		return bars, nil

	case "stream":
		if cfg.wsEndpoint == "" {
			return nil, fmt.Errorf("stream source requires --ws-endpoint")
		}
		if len(cfg.symbols) == 0 {
			return nil, fmt.Errorf("stream source requires --symbols")
		}
		return streamBars(ctx, logger, metrics, cfg.wsEndpoint, cfg.symbols, cfg.streamFor)

	default:
		return nil, fmt.Errorf("unknown source %q", cfg.source)
	}
}

// streamBars subscribes to live quotes and folds them into daily bars
// until the duration elapses or the context is cancelled.
func streamBars(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, endpoint string, symbols []string, streamFor time.Duration) ([]*domain.Bar, error) {
	stream, err := marketdata.NewQuoteStream(ctx, endpoint, nil)
	if err != nil {
		if metrics != nil {
			metrics.IngestionErrors.WithLabelValues("stream").Inc()
		}
		return nil, err
	}
	defer stream.Close()

	if err := stream.Subscribe(symbols...); err != nil {
		if metrics != nil {
			metrics.IngestionErrors.WithLabelValues("stream").Inc()
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	logger.Printf("Streaming quotes for %d symbols from %s", len(symbols), endpoint)

	var deadline <-chan time.Time
	if streamFor > 0 {
		timer := time.NewTimer(streamFor)
		defer timer.Stop()
		deadline = timer.C
	}

	agg := marketdata.NewQuoteAggregator()
	quotes := 0
	for {
		select {
		case <-ctx.Done():
			logger.Printf("Stream cancelled after %d quotes", quotes)
			return agg.Bars(), nil
		case <-deadline:
			logger.Printf("Stream window elapsed after %d quotes", quotes)
			return agg.Bars(), nil
		case q, ok := <-stream.Quotes():
			if !ok {
				return agg.Bars(), nil
			}
			agg.Apply(q)
			quotes++
		}
	}
}

// openBarStore opens the configured store and returns it with a
// metrics label and a close function.
func openBarStore(ctx context.Context, logger *log.Logger, postgresDSN string, useMemory bool) (storage.BarStore, string, func(), error) {
	if useMemory || postgresDSN == "" {
		logger.Println("Using in-memory storage")
		return memory.NewBarStore(), "memory", func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, "", nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, "", nil, err
	}
	logger.Println("Connected to PostgreSQL")
	return pgstore.NewBarStore(pool), "postgres", pool.Close, nil
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDateRange(fromDate, toDate string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)

	var err error
	if fromDate != "" {
		if start, err = time.Parse("2006-01-02", fromDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
		}
	}
	if toDate != "" {
		if end, err = time.Parse("2006-01-02", toDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return start, end, nil
}
