package main

import (
	"context"
	"io"
	"time"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/sqlite"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx       context.Context
	Stdout    io.Writer
	Stderr    io.Writer
	DB        *sqlite.DB
	Documents tidepool.DocumentService
	Engine    tidepool.Extractor
	Fetcher   tidepool.Fetcher
	Metrics   tidepool.MetricsSource
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Extract ExtractCmd `cmd:"" help:"Extract content from an HTML or PDF file, or a live URL"`
	Docs    DocsCmd    `cmd:"" help:"List stored documents"`
	Show    ShowCmd    `cmd:"" help:"Show a stored document"`
	Delete  DeleteCmd  `cmd:"" help:"Delete a stored document"`

	// Pool tuning. Every flag can also be set through its environment
	// variable.
	MaxPoolSize       int           `env:"TIDEPOOL_MAX_POOL_SIZE" default:"8" help:"Max instances per strategy pool"`
	InitialPoolSize   int           `env:"TIDEPOOL_INITIAL_POOL_SIZE" default:"2" help:"Instances created at pool startup"`
	ExtractionTimeout time.Duration `env:"TIDEPOOL_EXTRACTION_TIMEOUT" default:"30s" help:"Per-attempt extraction timeout"`
	AcquireTimeout    time.Duration `env:"TIDEPOOL_ACQUIRE_TIMEOUT" default:"5s" help:"Max wait for a pooled instance"`
	MemoryLimit       uint64        `env:"TIDEPOOL_MEMORY_LIMIT" default:"268435456" help:"Per-instance memory limit in bytes"`
	MaxInstanceReuse  int           `env:"TIDEPOOL_MAX_INSTANCE_REUSE" default:"1000" help:"Extractions before instance retirement"`
	BreakerThreshold  float64       `env:"TIDEPOOL_BREAKER_THRESHOLD" default:"0.5" help:"Failure ratio that opens the circuit breaker"`
}

// PoolConfig builds the pool configuration from the global flags.
func (c *CLI) PoolConfig() tidepool.PoolConfig {
	cfg := tidepool.DefaultPoolConfig()
	cfg.MaxPoolSize = c.MaxPoolSize
	cfg.InitialPoolSize = c.InitialPoolSize
	cfg.ExtractionTimeout = c.ExtractionTimeout
	cfg.AcquireTimeout = c.AcquireTimeout
	cfg.MemoryLimit = c.MemoryLimit
	cfg.MaxInstanceReuse = c.MaxInstanceReuse
	cfg.BreakerThreshold = c.BreakerThreshold
	return cfg
}

// ExtractCmd is the "extract" subcommand.
type ExtractCmd struct {
	File       string   `arg:"" optional:"" help:"Input file (HTML or PDF), or '-' for stdin"`
	URL        string   `short:"u" help:"Source URL (fetched over HTTP when no file is given; rendered with --browser)"`
	Order      []string `short:"o" help:"Strategy order override (css, regex, readability, wasm, browser)"`
	Browser    bool     `help:"Enable the headless-browser strategy"`
	WasmModule string   `env:"TIDEPOOL_WASM_MODULE" help:"Path to a wasm extractor module; enables the wasm strategy"`
	Markdown   bool     `short:"m" help:"Output Markdown instead of plain text"`
	JSON       bool     `short:"j" help:"Output the full document as JSON"`
	Save       bool     `short:"s" help:"Persist the document to the database"`
	Metrics    bool     `help:"Print pool metrics after extraction"`
	RPS        float64  `default:"1.0" help:"Per-domain requests per second for browser rendering"`
}

// DocsCmd is the "docs" subcommand.
type DocsCmd struct {
	URL       string `short:"u" help:"Filter by source URL"`
	Strategy  string `help:"Filter by extraction strategy"`
	Limit     int    `short:"n" default:"20" help:"Max documents to list"`
	ByQuality bool   `help:"Sort by quality score instead of recency"`
}

// ShowCmd is the "show" subcommand.
type ShowCmd struct {
	ID       string `arg:"" help:"Document ID"`
	Markdown bool   `short:"m" help:"Show Markdown instead of plain text"`
}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	ID string `arg:"" help:"Document ID"`
}
