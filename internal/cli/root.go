package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/thruflo/loopsh/internal/config"
	"github.com/thruflo/loopsh/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "loopsh",
	Short: "Interactive shell for plan, build and verify loops driven by an AI coding assistant",
	Long: `loopsh drives an AI coding assistant CLI through a repeating
plan → build → verify loop. Progress is checkpointed after every step so an
interrupted task can be resumed, and --dry-run replays the same decisions
without calling the assistant or touching any file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("loopsh version {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// workDir returns the project root commands operate on.
func workDir() (string, error) {
	return os.Getwd()
}

// newLogger builds the logger for a command from config and --verbose.
func newLogger(cfg *config.Config, w io.Writer) *logging.Logger {
	logger := logging.New()
	logger.SetWriter(w)

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	if verbose {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)
	return logger
}
