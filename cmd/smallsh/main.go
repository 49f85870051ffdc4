package main

import (
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"smallsh/internal/config"
	"smallsh/internal/history"
	"smallsh/internal/shell"
	"smallsh/internal/spawn"
)

var (
	cfgPath  string
	logPath  string
	noBanner bool
)

var rootCmd = &cobra.Command{
	Use:           "smallsh",
	Short:         "A small interactive shell",
	Long:          `smallsh runs commands with redirection and background jobs, and keeps the status of the last foreground command.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.Flags().StringVar(&logPath, "log-file", "", "write debug logs to this file")
	rootCmd.Flags().BoolVar(&noBanner, "no-banner", false, "do not print the welcome banner")
}

func main() {
	// A re-executed copy of this binary is a launch helper, not a shell.
	if spawn.IsChild() {
		spawn.Main()
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "smallsh: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, cfgPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogFile = logPath
	}
	if noBanner {
		cfg.Banner = ""
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		session := uuid.New().String()
		shell.SetLogOutput(f, session[:8])
		spawn.SetLogOutput(f)
	}

	// Scripts piped into the shell stay out of the history file, and
	// without a home directory there is nowhere to keep one.
	var hist *history.History
	if cfg.HistoryFile != "" && term.IsTerminal(int(os.Stdin.Fd())) {
		hist, err = history.New(fs, cfg.HistoryFile, cfg.HistorySize)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
	}

	sh := shell.New(cfg, hist)

	rlConfig := &readline.Config{
		Prompt:              cfg.Prompt,
		FuncFilterInputRune: sh.FilterInputRune,
	}
	if cfg.HistorySize > 0 {
		rlConfig.HistoryLimit = cfg.HistorySize
	}
	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("initializing line editor: %w", err)
	}
	defer rl.Close()

	if hist != nil {
		for _, line := range hist.GetAll() {
			rl.SaveHistory(line)
		}
	}

	return sh.Run(rl)
}
