// Command stanza is the CLI for the stanza agent runtime.
//
// Usage:
//
//	stanza chat "what is 2+3?" --config config.yaml
//	stanza repl --config config.yaml
//	stanza tools --config config.yaml
//	stanza sessions list
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	stanza "github.com/candralab/stanza"
	"github.com/candralab/stanza/agent"
	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/embedders"
	"github.com/candralab/stanza/llms"
	"github.com/candralab/stanza/logger"
	"github.com/candralab/stanza/retrieval"
	"github.com/candralab/stanza/session"
	"github.com/candralab/stanza/tools"
	"github.com/candralab/stanza/utils"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Chat     ChatCmd     `cmd:"" help:"Send one message and print the response."`
	Repl     ReplCmd     `cmd:"" help:"Start an interactive conversation."`
	Tools    ToolsCmd    `cmd:"" help:"List the tools available to the agent."`
	Sessions SessionsCmd `cmd:"" help:"Manage stored sessions."`
	Index    IndexCmd    `cmd:"" help:"Index documents for retrieval."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides the logger config section."`
	LogFile   string `help:"Log file path. Overrides the logger config output."`
	LogFormat string `help:"Log format (simple, text, json). Overrides the logger config section."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(stanza.GetVersion().String())
	return nil
}

// runtime holds the wired collaborators behind one configured agent.
type runtime struct {
	cfg          *config.Config
	provider     llms.Provider
	store        *session.FileStore
	orchestrator *agent.Orchestrator
	toolRegistry *tools.Registry
	watcher      *tools.Watcher
	embedder     embedders.Embedder
	retriever    retrieval.Engine
}

func (rt *runtime) Close() {
	if rt.watcher != nil {
		_ = rt.watcher.Stop()
	}
	if rt.retriever != nil {
		_ = rt.retriever.Close()
	}
	if rt.embedder != nil {
		_ = rt.embedder.Close()
	}
	if rt.provider != nil {
		_ = rt.provider.Close()
	}
}

// loadConfig loads the configuration file, or falls back to defaults when no
// file is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		slog.Info("No config file given, using defaults")
		return cfg, nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

// initLogging installs the process logger from the config logger section,
// with set CLI flags taking precedence. The returned cleanup closes the log
// file, if any.
func initLogging(cli *CLI, logCfg config.LoggerConfig) (func(), error) {
	levelStr := cli.LogLevel
	if levelStr == "" {
		levelStr = logCfg.Level
	}
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	format := cli.LogFormat
	if format == "" {
		format = logCfg.Format
	}

	outputName := cli.LogFile
	if outputName == "" {
		outputName = logCfg.Output
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	switch outputName {
	case "", "stderr":
	case "stdout":
		output = os.Stdout
	default:
		file, closeFile, err := logger.OpenLogFile(outputName)
		if err != nil {
			return nil, err
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, format)
	return cleanup, nil
}

// loadConfigAndLogger loads the configuration and installs the logger it
// describes.
func loadConfigAndLogger(cli *CLI) (*config.Config, func(), error) {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	cleanup, err := initLogging(cli, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

// buildRuntime wires provider, session store, tools, and retrieval from the
// loaded configuration.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	provider, err := llms.NewProviderFromConfig(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	countFn := session.CountFunc(utils.EstimateTokens)
	if counter, err := utils.NewTokenCounter(cfg.LLM.Model); err == nil {
		countFn = counter.Count
	} else {
		slog.Debug("tokenizer unavailable, using estimation", "model", cfg.LLM.Model, "error", err)
	}

	rt := &runtime{
		cfg:      cfg,
		provider: provider,
		store:    session.NewFileStore(cfg.Session.Dir, countFn),
	}

	services := agent.Services{
		Provider:  provider,
		Store:     rt.store,
		CountFunc: countFn,
		TopK:      cfg.Retrieval.TopK,
	}

	if cfg.Agent.EnableTools {
		reg := tools.NewRegistry()
		if err := reg.LoadAll(cfg.Tools.Dir); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to load tools: %w", err)
		}
		rt.toolRegistry = reg
		services.Tools = reg
		services.Dispatcher = tools.NewDispatcher(&cfg.Tools)

		if cfg.Tools.Watch {
			watcher, err := tools.NewWatcher(reg, cfg.Tools.Dir)
			if err != nil {
				slog.Warn("tool watching unavailable", "error", err)
			} else {
				rt.watcher = watcher
			}
		}
	}

	if cfg.Agent.EnableRetrieval {
		embedder, err := embedders.NewEmbedderFromConfig(&cfg.Embedder)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		rt.embedder = embedder
		services.Embedder = embedder

		engine, err := retrieval.NewEngineFromConfig(&cfg.Retrieval)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create retrieval engine: %w", err)
		}
		rt.retriever = engine
		services.Retriever = engine
	}

	orch, err := agent.NewOrchestrator(cfg.Agent, cfg.Session, services)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orchestrator = orch
	return rt, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// ChatCmd sends one message to the agent and prints the response.
type ChatCmd struct {
	Message string `arg:"" help:"User message."`
	Session string `short:"s" help:"Session name." default:"default"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := runTurn(ctx, rt, c.Session, c.Message)
	if err != nil {
		return err
	}
	if !cfg.Agent.Streaming {
		fmt.Println(result.FinalText)
	}
	return nil
}

// runTurn executes one orchestrated turn, streaming tokens when configured.
func runTurn(ctx context.Context, rt *runtime, sessionName, message string) (*agent.RunResult, error) {
	if rt.cfg.Agent.Streaming {
		result, err := rt.orchestrator.RunStreaming(ctx, sessionName, message, func(token string) {
			fmt.Print(token)
		})
		if result != nil && result.FinalText != "" {
			fmt.Println()
		}
		return result, err
	}
	return rt.orchestrator.Run(ctx, sessionName, message)
}

// ReplCmd runs an interactive conversation loop.
type ReplCmd struct {
	Session string `short:"s" help:"Session name." default:"default"`
}

func (c *ReplCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if rt.watcher != nil {
		if err := rt.watcher.Start(ctx); err != nil {
			slog.Warn("tool watching failed to start", "error", err)
		}
	}

	fmt.Printf("stanza repl (session %q, model %s). Type 'exit' to quit.\n",
		c.Session, rt.provider.GetModelName())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := runTurn(ctx, rt, c.Session, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if !cfg.Agent.Streaming {
			fmt.Println(result.FinalText)
		}
		for _, call := range result.ToolCalls {
			slog.Debug("tool call", "tool", call.Tool, "success", call.Result.Success)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// ToolsCmd lists the tools the agent can call.
type ToolsCmd struct {
	Schema bool `help:"Print the JSON calling schema instead of a listing."`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()

	reg := tools.NewRegistry()
	if err := reg.LoadAll(cfg.Tools.Dir); err != nil {
		return fmt.Errorf("failed to load tools: %w", err)
	}

	if c.Schema {
		schema, err := reg.CallingSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(schema))
		return nil
	}

	names := reg.Names()
	if len(names) == 0 {
		fmt.Printf("No tools found in %s\n", cfg.Tools.Dir)
		return nil
	}
	fmt.Printf("Tools in %s:\n", cfg.Tools.Dir)
	for _, name := range names {
		desc, _ := reg.Get(name)
		fmt.Printf("  - %s: %s\n", name, desc.Description)
		for _, p := range desc.Parameters {
			required := ""
			if p.Required {
				required = " (required)"
			}
			fmt.Printf("      --%s%s  %s\n", p.Name, required, p.Description)
		}
	}
	return nil
}

// SessionsCmd manages stored sessions.
type SessionsCmd struct {
	List   SessionsListCmd   `cmd:"" default:"1" help:"List stored sessions."`
	Delete SessionsDeleteCmd `cmd:"" help:"Delete a stored session."`
}

type SessionsListCmd struct{}

func (c *SessionsListCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()
	store := session.NewFileStore(cfg.Session.Dir, nil)
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No sessions in %s\n", cfg.Session.Dir)
		return nil
	}
	for _, name := range names {
		sess, err := store.Load(name)
		if err != nil {
			fmt.Printf("  - %s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("  - %s (%d messages, ~%d tokens)\n", name, sess.Len(), sess.TokenCount())
	}
	return nil
}

type SessionsDeleteCmd struct {
	Name string `arg:"" help:"Session name to delete."`
}

func (c *SessionsDeleteCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()
	store := session.NewFileStore(cfg.Session.Dir, nil)
	if err := store.Delete(c.Name); err != nil {
		return err
	}
	fmt.Printf("Deleted session %q\n", c.Name)
	return nil
}

// IndexCmd embeds documents and stores them in the retrieval engine. Only
// useful with a persistent engine backend.
type IndexCmd struct {
	Path string `arg:"" help:"File or directory of .txt/.md documents." type:"path"`
}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, logCleanup, err := loadConfigAndLogger(cli)
	if err != nil {
		return err
	}
	defer logCleanup()
	if cfg.Retrieval.Provider != "chromem" || cfg.Retrieval.PersistPath == "" {
		slog.Warn("retrieval engine is not persistent, indexed documents will not survive this process",
			"provider", cfg.Retrieval.Provider)
	}

	embedder, err := embedders.NewEmbedderFromConfig(&cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer embedder.Close()

	engine, err := retrieval.NewEngineFromConfig(&cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("failed to create retrieval engine: %w", err)
	}
	defer engine.Close()

	ctx, cancel := signalContext()
	defer cancel()

	files, err := collectDocumentFiles(c.Path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .txt or .md files found under %s", c.Path)
	}

	indexed := 0
	for _, file := range files {
		n, err := indexFile(ctx, engine, embedder, file)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("failed to index file", "file", file, "error", err)
			continue
		}
		indexed += n
	}
	fmt.Printf("Indexed %d chunks from %d files (%d documents total)\n",
		indexed, len(files), engine.Count())
	return nil
}

func collectDocumentFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".txt", ".md":
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// indexFile splits a file on blank lines and stores one document per chunk.
func indexFile(ctx context.Context, engine retrieval.Engine, embedder embedders.Embedder, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, chunk := range strings.Split(string(data), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		embedding, err := embedder.Embed(ctx, chunk)
		if err != nil {
			return indexed, err
		}
		doc := retrieval.Document{
			ID:        uuid.NewString(),
			Text:      chunk,
			Embedding: embedding,
			Metadata:  map[string]string{"source": path},
		}
		if err := engine.Add(ctx, doc); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

// ValidateCmd checks that a configuration file loads and validates.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration %s is valid (llm: %s/%s)\n", cli.Config, cfg.LLM.Type, cfg.LLM.Model)
	return nil
}

func main() {
	config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("stanza"),
		kong.Description("stanza - a session-aware tool-calling agent runtime"),
		kong.UsageOnError(),
	)

	// Bootstrap logger; commands reinstall it once the config is loaded
	logger.Init(slog.LevelInfo, os.Stderr, "simple")

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
