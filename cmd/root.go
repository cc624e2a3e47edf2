package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Saijash84/CalMate/internal/config"
)

// rootCmd represents the base command for the calmate application
var rootCmd = &cobra.Command{
	Use:   "calmate",
	Short: "Conversational scheduling assistant",
	Long: `calmate turns free-text requests such as "book a meeting with alex tomorrow
at 3pm" into calendar operations. It books, cancels, reschedules and lists
meetings, checks availability and proposes free slots on conflicts.

It can run as:
  - A chat API over HTTP and websockets (serve)
  - An MCP (Model Context Protocol) server for AI assistants (serve --transport stdio)
  - A local interactive session (chat)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), logFormat, debugMode)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

var (
	// version will be set by main
	version = "dev"

	debugMode  bool
	logFormat  string
	configFile string

	// v carries config defaults, the config file, CALMATE_ env vars and
	// bound flags.
	v = config.New()
)

// SetVersion sets the version for the root command
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calmate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./calmate.yaml or ~/.config/calmate/calmate.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newBookingsCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// newLogger builds the process logger. Debug mode lowers the level to debug.
func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}
}

// loadConfig reads the layered configuration. Flags bound to v by the
// running command take precedence over everything else.
func loadConfig(vp *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(vp, configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
