// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads .env and config, and sets up the structured logger before subcommands run

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/config"
)

// skipConfig marks commands that run without loading the config.
const skipConfig = "maillog/skip-config"

var (
	cfgPath   string
	verbose   bool
	logFormat string

	appConfig *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "maillog",
	Short: "Turn emailed [add]/[delete] commands into a JSON entry log",
	Long: `
maillog reads unread mail from one allowed sender and applies the
commands it finds to a JSON log of entries.

  [add] some text     appends an entry (first link and photo attached)
  [delete] some text  removes the newest entry with exactly that text

Every processed message is marked read and labelled so it is never applied twice.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}

		var err error
		logger, err = newLogger(os.Stderr, verbose, logFormat)
		if err != nil {
			return err
		}

		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		appConfig, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the CLI with ctx as the root context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default: ~/.config/maillog/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// loadDotEnv loads credentials from path into the environment. A missing
// file is fine; variables already set are not overridden.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// newLogger builds the slog logger for internal packages. Console narration
// goes to stdout; these logs go to w.
func newLogger(w io.Writer, debug bool, format string) (*slog.Logger, error) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q (want text or json)", format)
	}
}
