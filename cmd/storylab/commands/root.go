package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Hua914255/media/pkg/config"
	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/kv"
	"github.com/Hua914255/media/pkg/server"
	"github.com/Hua914255/media/pkg/story"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	logFormat    string
	formatOutput string
)

var rootCmd = &cobra.Command{
	Use:   "storylab",
	Short: "Interactive story continuation service",
	Long: `storylab - continue interactive stories with an LLM.

Each continuation appends the user's sentence and a bounded number of
AI-written sentences to a story. Without LLM credentials storylab runs
offline and answers with deterministic placeholder sentences.

Configuration is layered: built-in defaults, the YAML file given with
--config, then environment variables (STORYLAB_ADDR, STORYLAB_DATA_DIR,
DEEPSEEK_API_KEY, DEEPSEEK_BASE_URL, DEEPSEEK_MODEL, GEMINI_API_KEY,
LLM_PROVIDER, ...).

Examples:
  # Run the server
  DEEPSEEK_API_KEY=sk-... storylab serve

  # Work with stories from the terminal
  storylab story create
  storylab continue 1a2b3c4d "小明推开门。" --rounds 3 --stream
  storylab story show 1a2b3c4d -o yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.StringVarP(&formatOutput, "format", "o", "text", "output format: text, yaml or json")
}

func setupLogging(w io.Writer) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch logFormat {
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// app holds what the commands share: configuration, the story store and
// the server that owns the continuation flow.
type app struct {
	cfg     *config.Config
	stories *story.Store
	srv     *server.Server
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	stories, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	src, err := cfg.LLM.Source(ctx)
	if err != nil {
		stories.Close()
		return nil, err
	}
	if src == nil {
		slog.WarnContext(ctx, "storylab: no LLM credentials, running offline")
	} else {
		slog.DebugContext(ctx, "storylab: LLM configured", "provider", cfg.LLM.ResolvedProvider())
	}

	srv := server.New(server.Config{
		Stories: stories,
		Continuation: continuation.Config{
			Source:       src,
			MaxAttempts:  cfg.Continuation.MaxAttempts,
			TopUp:        cfg.Continuation.TopUp,
			FallbackPace: cfg.Continuation.FallbackPace,
		},
		Params:      cfg.LLM.Params,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      slog.Default(),
	})
	return &app{cfg: cfg, stories: stories, srv: srv}, nil
}

func (a *app) Close() error {
	return a.stories.Close()
}

func openStore(s config.Storage) (*story.Store, error) {
	var (
		db  kv.Store
		err error
	)
	switch s.Driver {
	case config.StorageMemory:
		db = kv.NewMemory()
	case config.StorageSQLite:
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("open store %s: %w", s.Dir, err)
		}
		db, err = kv.NewSQLite(filepath.Join(s.Dir, "storylab.db"))
	default:
		db, err = kv.NewBadger(kv.BadgerOptions{Dir: s.Dir, Logger: slog.Default()})
	}
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", s.Dir, err)
	}
	return story.NewStore(db), nil
}
