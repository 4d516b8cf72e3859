package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/fnuworsu/gqldb/internal/config"
	"github.com/fnuworsu/gqldb/internal/logger"
	"github.com/fnuworsu/gqldb/internal/table"
	"github.com/fnuworsu/gqldb/pkg/fixture"
	"github.com/fnuworsu/gqldb/pkg/query"
	"github.com/fnuworsu/gqldb/pkg/storage"
)

const banner = `
╔═══════════════════════════════════════════╗
║   gqldb - Document Query REPL             ║
╚═══════════════════════════════════════════╝
`

const historyFile = ".gql_history"

var (
	errColor = color.New(color.FgRed)
	okColor  = color.New(color.FgGreen)
	dimColor = color.New(color.Faint)
)

type session struct {
	cfg    *config.Config
	store  storage.Store
	engine *query.Engine
	log    *slog.Logger
}

func main() {
	fmt.Print(banner)

	cfg, err := config.Load(os.Getenv("GQL_CONFIG"))
	if err != nil {
		errColor.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	fmt.Printf("Opening %s store at %s...\n", cfg.Data.Backend, cfg.Data.Dir)
	store, err := storage.Open(cfg.Data.Backend, cfg.Data.Dir, log)
	if err != nil {
		errColor.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	s := &session{
		cfg:    cfg,
		store:  store,
		engine: query.NewEngine(store, query.WithLogger(log)),
		log:    log,
	}
	s.printStatus()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	histPath := filepath.Join(cfg.Data.Dir, historyFile)
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("gql> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errColor.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if s.processCommand(input) {
			break
		}
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err == nil {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	fmt.Println("Goodbye!")
}

var commands = []string{"help", "status", "load ", "snapshot", "exit"}

func completeCommand(prefix string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(prefix)) {
			out = append(out, c)
		}
	}
	return out
}

// processCommand handles one line and reports whether the REPL should exit
func (s *session) processCommand(input string) bool {
	cmd, arg := splitCommand(input)
	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		printHelp()
	case "status":
		s.printStatus()
	case "load":
		s.load(arg)
	case "snapshot":
		s.snapshot()
	default:
		s.executeQuery(input)
	}
	return false
}

func (s *session) load(path string) {
	if path == "" {
		errColor.Println("usage: load <file.yaml|file.json>")
		return
	}
	n, err := fixture.LoadInto(s.store, path)
	if err != nil {
		errColor.Printf("Load failed after %d documents: %v\n", n, err)
		return
	}
	s.log.Debug("loaded fixture", "path", path, "documents", n)
	okColor.Printf("✓ Loaded %d documents from %s\n", n, path)
}

func (s *session) snapshot() {
	snap, ok := s.store.(storage.Snapshotter)
	if !ok {
		errColor.Printf("The %s backend does not take snapshots\n", s.cfg.Data.Backend)
		return
	}
	if err := snap.Snapshot(); err != nil {
		errColor.Printf("Snapshot failed: %v\n", err)
		return
	}
	okColor.Println("✓ Snapshot complete")
}

func (s *session) executeQuery(input string) {
	opts, err := parseQueryLine(input)
	if err != nil {
		errColor.Printf("Input Error: %v\n", err)
		return
	}

	start := time.Now()
	s.engine.GQL(context.Background(), opts, func(res *query.Result, err error) {
		if err != nil {
			errColor.Printf("%v\n", err)
			return
		}
		table.Write(os.Stdout, res)
		dimColor.Printf("\n(%d rows, %s)\n", len(res.Rows), time.Since(start))
	})
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  help, ?        - Show this help message")
	fmt.Println("  status         - Show store status")
	fmt.Println("  load <file>    - Load documents from a YAML or JSON list")
	fmt.Println("  snapshot       - Snapshot the WAL store")
	fmt.Println("  exit, quit, q  - Exit the REPL")
	fmt.Println()
	fmt.Println("Query Examples:")
	fmt.Println("  select=name, age; where=age > 30")
	fmt.Println("  select=dept, average(salary); groupBy=dept; descending=true")
	fmt.Println(`  {"select": "count(name)", "pivot": "dept"}`)
}

func (s *session) printStatus() {
	n, err := s.store.Count()
	if err != nil {
		errColor.Printf("Count failed: %v\n", err)
		return
	}
	fmt.Printf("Documents: %d\n", n)
	fmt.Printf("Storage: %s (%s)\n", s.cfg.Data.Backend, s.cfg.Data.Dir)
}
