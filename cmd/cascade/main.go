package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/cascadekit/cascade/internal/api"
	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/config"
	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/dispatch"
	"github.com/cascadekit/cascade/internal/doctor"
	"github.com/cascadekit/cascade/internal/events"
	"github.com/cascadekit/cascade/internal/journal"
	"github.com/cascadekit/cascade/internal/lock"
	"github.com/cascadekit/cascade/internal/log"
	"github.com/cascadekit/cascade/internal/node"
	"github.com/cascadekit/cascade/internal/pipeline"
	"github.com/cascadekit/cascade/internal/queue"
	"github.com/cascadekit/cascade/internal/state"
	"github.com/cascadekit/cascade/internal/tui"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		return runServe(args)
	case "watch":
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "journal":
		return runJournalNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `cascade - UI command dispatch runtime

Usage:
  cascade serve  [--config PATH]          Run the dispatch runtime
  cascade watch  [--api URL] [--key KEY]  Live execution monitor
  cascade config check [--config PATH] [--json]
  cascade config show  [--config PATH]
  cascade journal show <execution-id> [--config PATH]
  cascade journal recent [--config PATH] [--limit N]
  cascade version [--json]
`)
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("cascade starting", "version", version, "config", *configPath)

	pidLock, err := lock.Acquire(lockPath(cfg))
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
		return 1
	}
	defer j.Close()

	doc, err := loadDocument(cfg)
	if err != nil {
		logger.Error("failed to load document", "path", cfg.Document, "error", err)
		return 1
	}

	templates, err := pipeline.LoadDir(cfg.TemplatesDir)
	if err != nil {
		logger.Error("failed to load pipeline templates", "dir", cfg.TemplatesDir, "error", err)
		return 1
	}
	logger.Info("pipeline templates loaded", "count", len(templates.Names()))

	hub := events.NewHub(256)
	reporter := diag.NewReporter(log.WithComponent("diag"), hub, cfg.Service.Debug)
	registry := command.NewRegistry(reporter)
	states := state.NewStore()
	q := queue.New(cfg.Runtime.QueueCapacity)

	disp := dispatch.New(dispatch.Options{
		Registry:       registry,
		States:         states,
		Document:       doc,
		Queue:          q,
		Journal:        j,
		Hub:            hub,
		Reporter:       reporter,
		HandlerTimeout: cfg.Runtime.HandlerTimeout,
		MaxChainDepth:  cfg.Runtime.MaxChainDepth,
		RatePerSecond:  cfg.Runtime.RatePerSecond,
	})

	engine := pipeline.NewEngine(templates, disp.InlineExec(queue.OriginPipeline))
	if err := registry.RegisterBuiltin("--pipeline:run", pipeline.Handler(engine)); err != nil {
		logger.Error("failed to register pipeline handler", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := q.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("queue: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(
			api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.APIKey},
			api.Deps{
				Executor:  disp,
				Registry:  registry,
				States:    states,
				Templates: templates,
				Journal:   j,
				Hub:       hub,
			},
			log.WithComponent("api"),
		)
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("cascade running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("cascade stopped")
	return 0
}

// lockPath places the PID lock next to a file-backed journal, or in the
// temp dir for a fully in-memory runtime.
func lockPath(cfg *config.Config) string {
	if cfg.Journal.Path != "" {
		return filepath.Join(filepath.Dir(cfg.Journal.Path), "cascade.lock")
	}
	return filepath.Join(os.TempDir(), "cascade-"+cfg.Service.Name+".lock")
}

func loadDocument(cfg *config.Config) (*node.Document, error) {
	if cfg.Document == "" {
		return node.NewDocument(), nil
	}
	return node.LoadFile(cfg.Document)
}

// --- watch ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8420", "Base URL of a running cascade API")
	apiKey := fs.String("key", os.Getenv("CASCADE_API_KEY"), "API key (defaults to $CASCADE_API_KEY)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	p := tea.NewProgram(tui.NewMonitor(*apiURL, *apiKey), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor failed: %v\n", err)
		return 1
	}
	return 0
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cascade config <check|show> [flags]")
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config verb: %s\n", args[0])
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	doc, err := loadDocument(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load document: %v\n", err)
		return 1
	}
	templates, err := pipeline.LoadDir(cfg.TemplatesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load templates: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, doc, templates, builtinPrefixes()).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

// builtinPrefixes lists the command prefixes serve registers itself.
// Embedding applications add their own at runtime, so unknown-command
// findings from config check are warnings, never errors.
func builtinPrefixes() []string {
	return []string{"--pipeline:run"}
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(out))
	return 0
}

// --- journal ---

func runJournalNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cascade journal <show|recent> [flags]")
		return 1
	}
	switch args[0] {
	case "show":
		return runJournalShow(args[1:])
	case "recent":
		return runJournalRecent(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal verb: %s\n", args[0])
		return 1
	}
}

func openJournalFromConfig(configPath string) (*journal.Journal, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Journal.Path == "" {
		return nil, fmt.Errorf("journal is in-memory; set journal.path to inspect past runs")
	}
	return journal.Open(context.Background(), cfg.Journal.Path)
}

func runJournalShow(args []string) int {
	fs := flag.NewFlagSet("journal show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cascade journal show <execution-id> [--config PATH]")
		return 1
	}

	j, err := openJournalFromConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer j.Close()

	entry, err := j.Get(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render entry: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func runJournalRecent(args []string) int {
	fs := flag.NewFlagSet("journal recent", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	limit := fs.Int("limit", 20, "Maximum entries to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	j, err := openJournalFromConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer j.Close()

	entries, err := j.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	for _, e := range entries {
		fmt.Printf("%s  %-10s  %-28s  %-14s  %s\n",
			e.StartedAt.Format("15:04:05.000"), e.Status, e.Command, e.Target, e.ID)
	}
	return 0
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("cascade %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{Version: version, Commit: gitCommit, BuildTime: buildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" && s.Value != "" {
					info.Commit = shortenCommit(s.Value)
				}
			case "vcs.time":
				if info.BuildTime == "unknown" && s.Value != "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
