package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/cfd-invoice/internal/export"
	"github.com/zombor/cfd-invoice/internal/history"
	"github.com/zombor/cfd-invoice/internal/scanning"
	"github.com/zombor/cfd-invoice/internal/workflow"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("cfd-invoice")
	var (
		dbPath      = fs.StringLong("db", "cfd-invoice.db", "History database file path")
		outDir      = fs.StringLong("out", ".", "Directory for printed bills and exported workbooks")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY / API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		temperature = fs.Float64Long("temperature", float64(scanning.DefaultTemperature), "Decoding temperature sent to the provider")
		prompt      = fs.StringLong("prompt", "", "Replace the extraction instruction sent with every document")
		strictIDs   = fs.BoolLong("strict-ids", "Fail instead of falling back to weak history ids")
		debug       = fs.BoolLong("debug", "Enable debug logging")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CFD_INVOICE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	args := fs.GetArgs()
	if len(args) > 1 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: at most one document path may be given\n")
		os.Exit(1)
	}

	// Initialize history
	slog.Info("Initializing history...", "db", *dbPath)
	kv, err := history.NewBoltKV(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize history database", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	store := history.NewStore(kv, history.WithStrictIDs(*strictIDs))
	entries := store.Load()
	slog.Info("History loaded", "entries", len(entries))

	contract := scanning.DefaultContract()
	contract.Temperature = float32(*temperature)
	if strings.TrimSpace(*prompt) != "" {
		contract.Prompt = *prompt
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		// The key is looked up on every scan so it can be fixed without a restart
		credential := func() string {
			for _, key := range []string{*geminiKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")} {
				if strings.TrimSpace(key) != "" {
					return key
				}
			}
			return ""
		}
		if credential() == "" {
			slog.Warn("No Gemini API key configured. Set --gemini-key, CFD_INVOICE_GEMINI_KEY or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(credential, *geminiModel, contract)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel, contract)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize output storage
	output, err := export.NewLocalStorage(*outDir)
	if err != nil {
		slog.Error("Failed to initialize output directory", "error", err)
		os.Exit(1)
	}

	controller := workflow.NewController(scanner, store)
	sh := newShell(controller, export.NewExporter(output, nil), os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 1 {
		sh.scan(ctx, args[0])
	}

	if err := sh.run(ctx); err != nil {
		slog.Error("Command loop failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
