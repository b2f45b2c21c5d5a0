package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rashkov/gish/internal/config"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Exchange flags
	flagModel  string
	flagStream bool
	flagChat   bool
	flagDryRun bool
	flagStats  bool
	flagSave   bool
	flagDiff   string
	flagPrompt string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gish",
	Short: "gish - command-line chat client for hosted language models",
	Long: `gish sends prompts to a hosted language model and prints the
response. Request text may inline files with #import and #diff
directives, and every exchange is logged so that a later invocation can
continue the conversation with --chat.

Examples:
  gish ask explain the code in this file "#import main.go"
  gish input request.txt --stream --stats
  gish ask refactor this "#diff handler.go" --save`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	for _, cmd := range []*cobra.Command{askCmd, inputCmd} {
		cmd.Flags().StringVar(&flagModel, "model", "", "Model to use (default from config)")
		cmd.Flags().BoolVar(&flagStream, "stream", false, "Stream the response as it arrives")
		cmd.Flags().BoolVar(&flagChat, "chat", false, "Continue the most recent logged conversation")
		cmd.Flags().BoolVar(&flagDryRun, "dryrun", false, "Expand directives and estimate tokens without contacting the model")
		cmd.Flags().BoolVar(&flagStats, "stats", false, "Print token, cost, and duration stats")
		cmd.Flags().BoolVar(&flagSave, "save", false, "Save the response to a file")
		cmd.Flags().StringVar(&flagDiff, "diff", "", "Compare the response against this file")
		cmd.Flags().StringVar(&flagPrompt, "prompt", "", "Prepend a system prompt read from this file")
	}

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
