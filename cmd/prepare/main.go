// Package main provides the dataset preparation entry point: loads
// daily bars, runs the preparation pipeline, persists the resulting
// training windows, and writes a dataset report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/marketdata"
	"equity-window-lab/internal/observability"
	"equity-window-lab/internal/pipeline"
	"equity-window-lab/internal/reporting"
	"equity-window-lab/internal/storage"
	chstore "equity-window-lab/internal/storage/clickhouse"
	"equity-window-lab/internal/storage/memory"
	"equity-window-lab/internal/storage/migrations"
	pgstore "equity-window-lab/internal/storage/postgres"
)

func main() {
	source := flag.String("source", "fixtures", "Bar source: fixtures, csv, or postgres")
	csvDir := flag.String("csv-dir", "data", "Directory with per-symbol CSV files (csv source)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (postgres source)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for window storage (empty for in-memory)")
	fixtureSymbols := flag.String("fixture-symbols", "AAPL,MSFT,GOOG", "Symbols to synthesize (fixtures source)")
	fixtureDays := flag.Int("fixture-days", 400, "Business days to synthesize per symbol (fixtures source)")
	windowSize := flag.Int("window-size", domain.DefaultWindowSize, "Rows per training window")
	predictionDays := flag.Int("prediction-days", domain.DefaultPredictionDays, "Calendar-day lookahead for target labeling")
	movingAverages := flag.String("moving-averages", "5,20", "Comma-separated close moving-average lengths")
	volumeWindow := flag.Int("volume-window", domain.DefaultVolumeWindow, "Volume moving-average length")
	workers := flag.Int("workers", 0, "Concurrent symbol workers (0 = NumCPU)")
	skipAdjust := flag.Bool("skip-adjust", false, "Skip the corporate-action adjustment pass")
	outputDir := flag.String("output-dir", "reports", "Directory for the dataset report")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Enable per-stage logging")
	flag.Parse()

	logger := log.New(os.Stdout, "[prepare] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	maWindows, err := parseIntList(*movingAverages)
	if err != nil {
		logger.Fatalf("Parse --moving-averages: %v", err)
	}
	cfg := domain.PrepConfig{
		WindowSize:           *windowSize,
		PredictionDays:       *predictionDays,
		MovingAverageWindows: maWindows,
		VolumeWindow:         *volumeWindow,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	var metrics *observability.Metrics
	if *metricsAddr != "" {
		metrics = observability.NewMetrics("")
		go serveMetrics(logger, *metricsAddr)
	}

	bars, err := loadBars(ctx, logger, *source, *csvDir, *postgresDSN, *fixtureSymbols, *fixtureDays)
	if err != nil {
		logger.Fatalf("Load bars: %v", err)
	}
	logger.Printf("Loaded %d bars", len(bars))

	p := pipeline.New(pipeline.Options{
		Config:         cfg,
		Workers:        *workers,
		Verbose:        *verbose,
		SkipAdjustment: *skipAdjust,
		Metrics:        metrics,
	})

	started := time.Now()
	res, err := p.Run(ctx, bars)
	if err != nil {
		if errors.Is(err, pipeline.ErrExhausted) {
			logger.Fatalf("Run exhausted: %v", err)
		}
		logger.Fatalf("Run failed: %v", err)
	}
	logger.Printf("Produced %d windows from %d symbols in %s",
		len(res.Windows), len(res.Stats), time.Since(started).Round(time.Millisecond))
	for _, d := range res.Dropped {
		logger.Printf("Dropped %s", d)
	}

	windowStore, dbName, closeStore, err := openWindowStore(ctx, logger, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Open window store: %v", err)
	}
	defer closeStore()

	insertStart := time.Now()
	err = windowStore.InsertBulk(ctx, res.Windows)
	metrics.RecordDBQuery(dbName, "insert_windows", time.Since(insertStart).Seconds(), err)
	if err != nil {
		logger.Fatalf("Store windows: %v", err)
	}
	logger.Printf("Stored %d windows", len(res.Windows))

	gen := reporting.NewGenerator()
	report := gen.Generate(res, cfg)
	if err := gen.WriteFiles(*outputDir, report); err != nil {
		logger.Fatalf("Write report: %v", err)
	}
	logger.Printf("Run %s: wrote %s and %s to %s",
		report.RunID, reporting.SummaryCSVName, reporting.ReportMDName, *outputDir)
}

// loadBars loads from the configured source.
func loadBars(ctx context.Context, logger *log.Logger, source, csvDir, postgresDSN, fixtureSymbols string, fixtureDays int) ([]*domain.Bar, error) {
	switch source {
	case "fixtures":
		symbols := splitSymbols(fixtureSymbols)
		if len(symbols) == 0 {
			return nil, fmt.Errorf("fixtures source requires --fixture-symbols")
		}
		start := time.Now().UTC().AddDate(0, 0, -2*fixtureDays)
		logger.Printf("Synthesizing %d days for %d symbols", fixtureDays, len(symbols))
		return pipeline.GenerateBars(symbols, start, fixtureDays), nil

	case "csv":
		logger.Printf("Loading CSV files from %s", csvDir)
		return marketdata.LoadCSVDir(csvDir)

	case "postgres":
		if postgresDSN == "" {
			return nil, fmt.Errorf("postgres source requires --postgres-dsn")
		}
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		logger.Println("Loading bars from PostgreSQL")
		return pgstore.NewBarStore(pool).GetAll(ctx)

	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// openWindowStore opens the configured store and returns it with a
// metrics label and a close function.
func openWindowStore(ctx context.Context, logger *log.Logger, clickhouseDSN string) (storage.WindowStore, string, func(), error) {
	if clickhouseDSN == "" {
		logger.Println("Using in-memory window storage")
		return memory.NewWindowStore(), "memory", func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, "", nil, err
	}
	logger.Println("Connected to ClickHouse")
	return chstore.NewWindowStore(conn), "clickhouse", func() { conn.Close() }, nil
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

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
