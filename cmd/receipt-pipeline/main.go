package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/pipeline"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("receipt-pipeline")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbPath           = fs.StringLong("db", "receipt-pipeline.db", "Offline store file path")
		uploadsPath      = fs.StringLong("uploads", "./uploads", "Upload storage directory")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set RECEIPT_PIPELINE_GEMINI_KEY)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		visionURL        = fs.StringLong("vision-url", "", "Vision OCR service endpoint")
		visionKey        = fs.StringLong("vision-key", "", "Vision OCR service API key")
		ollamaURL        = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel      = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		cooldown         = fs.DurationLong("cooldown", extraction.DefaultCooldown, "Cool-down window after an extractor failure")
		extractorTimeout = fs.DurationLong("extractor-timeout", pipeline.DefaultExtractorTimeout, "Per-extractor call timeout")
		scanTimeout      = fs.DurationLong("scan-timeout", pipeline.DefaultScanTimeout, "Overall per-scan deadline")
		queueSize        = fs.IntLong("queue-size", pipeline.DefaultQueueSize, "Processing queue capacity")
		cacheTTL         = fs.DurationLong("cache-ttl", pipeline.DefaultCacheTTL, "Result cache entry lifetime")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PIPELINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing offline store...", "path", *dbPath)
	store, err := pipeline.NewBoltStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize offline store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	registry, err := extraction.BuildRegistry(extraction.Config{
		GeminiAPIKey:   *geminiKey,
		GeminiModel:    *geminiModel,
		VisionEndpoint: *visionURL,
		VisionAPIKey:   *visionKey,
		OllamaURL:      *ollamaURL,
		OllamaModel:    *ollamaModel,
		Cooldown:       *cooldown,
	})
	if err != nil {
		slog.Error("Failed to build extractor registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	for _, status := range registry.Status() {
		slog.Info("Extractor registered", "name", status.Name, "priority", status.Priority)
	}

	storage, err := pipeline.NewLocalStorage(*uploadsPath)
	if err != nil {
		slog.Error("Failed to initialize upload storage", "error", err)
		os.Exit(1)
	}

	service := pipeline.NewService(registry, store, pipeline.Config{
		QueueSize:        *queueSize,
		CacheTTL:         *cacheTTL,
		ExtractorTimeout: *extractorTimeout,
		ScanTimeout:      *scanTimeout,
	})
	service.Start()
	defer service.Stop()

	server := pipeline.NewServer(service, storage, pipeline.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
