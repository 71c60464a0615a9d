package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/cache"
	"github.com/fwojciec/tidepool/cascade"
	"github.com/fwojciec/tidepool/events"
	"github.com/fwojciec/tidepool/goquery"
	"github.com/fwojciec/tidepool/htmltomarkdown"
	tidepoolhttp "github.com/fwojciec/tidepool/http"
	"github.com/fwojciec/tidepool/pdf"
	"github.com/fwojciec/tidepool/pool"
	"github.com/fwojciec/tidepool/regex"
	"github.com/fwojciec/tidepool/rod"
	tidepoolslog "github.com/fwojciec/tidepool/slog"
	"github.com/fwojciec/tidepool/sqlite"
	"github.com/fwojciec/tidepool/trafilatura"
	"github.com/fwojciec/tidepool/wazero"
)

// cacheMaxEntries bounds the in-process result cache.
const cacheMaxEntries = 1024

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by the document service.
	DB *sqlite.DB

	// Services for end-to-end testing.
	DocumentService tidepool.DocumentService
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("tidepool"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'tidepool --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set TIDEPOOL_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	m.DocumentService = sqlite.NewDocumentService(m.DB)
	deps.DB = m.DB
	deps.Documents = m.DocumentService

	if cmd == "extract" {
		engine, metrics, cleanup, err := buildEngine(ctx, cli, stderr)
		if err != nil {
			return err
		}
		defer cleanup()
		deps.Engine = engine
		deps.Metrics = metrics
		deps.Fetcher = tidepoolhttp.NewFetcher()
	}

	return kongCtx.Run(deps)
}

// buildEngine wires the strategy pools, circuit breakers, cascade,
// cache, and logging into a ready-to-use extractor. The returned
// cleanup function stops health monitors and closes all pools.
func buildEngine(ctx context.Context, cli *CLI, stderr io.Writer) (tidepool.Extractor, tidepool.MetricsSource, func(), error) {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	bus := events.NewBus(events.DefaultHistorySize)
	publisher := tidepoolslog.NewLoggingPublisher(bus, logger)
	cfg := cli.PoolConfig()

	available := map[tidepool.StrategyKind]tidepool.Strategy{
		tidepool.StrategyCSS:         goquery.NewStrategy(),
		tidepool.StrategyRegex:       regex.NewStrategy(),
		tidepool.StrategyReadability: trafilatura.NewStrategy(),
	}

	var wasmStrategy *wazero.Strategy
	if cli.Extract.WasmModule != "" {
		guest, err := os.ReadFile(cli.Extract.WasmModule)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading wasm module: %w", err)
		}
		wasmStrategy, err = wazero.NewStrategy(ctx, guest)
		if err != nil {
			return nil, nil, nil, err
		}
		available[tidepool.StrategyWasm] = wasmStrategy
	}

	if cli.Extract.Browser {
		available[tidepool.StrategyBrowser] = rod.NewStrategy(
			rod.WithDomainLimiter(rod.NewDomainLimiter(cli.Extract.RPS)),
		)
	}

	// The cascade falls back in registration order, so register the
	// configured strategies cheapest first.
	var strategies []tidepool.Strategy
	for _, kind := range tidepool.DefaultStrategyOrder() {
		if s, ok := available[kind]; ok {
			strategies = append(strategies, s)
		}
	}

	var (
		entries  []cascade.Entry
		pools    []*pool.InstancePool
		monitors []*pool.HealthMonitor
	)
	cleanup := func() {
		for _, hm := range monitors {
			hm.Stop()
		}
		for _, p := range pools {
			p.Close()
		}
		if wasmStrategy != nil {
			wasmStrategy.Close(context.Background())
		}
	}

	for _, strategy := range strategies {
		p, err := pool.New(ctx, strategy, cfg,
			pool.WithLogger(logger),
			pool.WithPublisher(publisher),
		)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("starting %s pool: %w", strategy.Kind(), err)
		}
		pools = append(pools, p)

		hm := pool.NewHealthMonitor(p, logger)
		hm.Start(ctx)
		monitors = append(monitors, hm)

		entries = append(entries, cascade.Entry{
			Pool: p,
			Breaker: cascade.NewCircuitBreaker(strategy.Kind(), cfg,
				cascade.WithBreakerLogger(logger),
				cascade.WithBreakerPublisher(publisher),
			),
		})
	}

	engine, err := cascade.New(entries,
		cascade.WithPreprocessors(pdf.NewPreprocessor()),
		cascade.WithConverter(htmltomarkdown.NewConverter()),
		cascade.WithContentAnalysis(),
		cascade.WithCascadeLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	cached := cache.New(engine, cacheMaxEntries, cacheMaxEntries)
	logged := tidepoolslog.NewLoggingExtractor(cached, logger)

	return logged, engine, cleanup, nil
}

func defaultDBPath() string {
	if path := os.Getenv("TIDEPOOL_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "tidepool.db"
	}
	dir := filepath.Join(home, ".tidepool")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "tidepool.db")
}
