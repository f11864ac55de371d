package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/logging"
	"github.com/nhle/labordesk/internal/model"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *model.AppConfig
	logger *zap.Logger
)

// rootCmd starts the notification center when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "labordesk",
	Short: "LaborDesk - HR back-office notification center",
	Long: `LaborDesk shows the back-office notification feed in the terminal.

Run without arguments to open the interactive notification center. The
subcommands talk to the same API for scripting, and "devserver" runs a
local backend for development.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal outside development.
		_ = godotenv.Load()

		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}

		// The interactive UI owns the terminal, so it logs to a file.
		file := ""
		if cmd == cmd.Root() {
			file = cfg.Log.File
		}

		logger, err = logging.New(level, file)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		listCmd,
		groupedCmd,
		sendCmd,
		archiveCmd,
		deleteCmd,
		actionCmd,
		devserverCmd,
		loginCmd,
	)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
