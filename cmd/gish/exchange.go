// This file contains the ask/input/log/config commands and the wiring
// that builds an exchange from CLI flags.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rashkov/gish/internal/chat"
	"github.com/rashkov/gish/internal/config"
	"github.com/rashkov/gish/internal/convlog"
	"github.com/rashkov/gish/internal/fileio"
	"github.com/rashkov/gish/internal/pathutil"
	"github.com/rashkov/gish/internal/session"
)

// askCmd sends a request assembled from the command-line words.
var askCmd = &cobra.Command{
	Use:   "ask [words...]",
	Short: "Send a request assembled from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd.Context(), strings.Join(args, " "))
	},
}

// inputCmd sends a request read from a file.
var inputCmd = &cobra.Command{
	Use:   "input <file>",
	Short: "Send a request read from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(pathutil.Normalize(args[0]))
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		return runExchange(cmd.Context(), string(data))
	},
}

// logCmd lists past exchanges from the conversation log.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List logged exchanges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		entries, err := convlog.New(cfg.ResolvedLogPath()).Entries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("conversation log is empty")
			return nil
		}
		for i, e := range entries {
			fmt.Printf("%3d  %s  tokens=%d  cost=%s  %.2fs\n",
				i+1, e.Timestamp, e.TokenCount, e.Cost, e.DurationSeconds)
			if line := firstUserLine(e.Messages); line != "" {
				fmt.Printf("     %s\n", line)
			}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage gish configuration",
}

// configInitCmd writes the default config file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("config file already exists at %s", cfgPath)
		}
		if err := config.DefaultConfig().Save(cfgPath); err != nil {
			return err
		}
		fmt.Printf("wrote default config to %s\n", cfgPath)
		return nil
	},
}

// runExchange wires config, backend, log, and collaborators together and
// executes one exchange.
func runExchange(ctx context.Context, requestText string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if !flagDryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	model := flagModel
	if model == "" {
		model = cfg.Chat.DefaultModel
	}

	client := chat.NewClient(chat.ClientConfig{
		APIKey:      cfg.API.APIKey,
		BaseURL:     cfg.API.BaseURL,
		Model:       model,
		MaxTokens:   cfg.API.MaxTokens,
		Temperature: cfg.API.Temperature,
		Timeout:     cfg.GetTimeout(),
	}, logger)

	controller := session.NewController(
		client,
		convlog.New(cfg.ResolvedLogPath()),
		session.ControllerConfig{
			DefaultModel: cfg.Chat.DefaultModel,
			CostPerToken: cfg.Chat.CostPerToken,
		},
		logger,
	)
	controller.SetSaver(fileio.NewSaver(cfg.ResolvedSaveDir(), logger))
	controller.SetLauncher(fileio.NewLauncher(cfg.Chat.DiffCommand, os.Stdout, logger))

	res, err := controller.RunExchange(ctx, requestText, session.ExchangeConfig{
		Model:     model,
		Stream:    flagStream,
		Chat:      flagChat,
		DryRun:    flagDryRun,
		Stats:     flagStats,
		Save:      flagSave,
		Diff:      flagDiff,
		Prompt:    flagPrompt,
		StreamOut: os.Stdout,
	})
	if err != nil {
		return err
	}

	if res.DryRun {
		fmt.Println(res.Expanded)
		color.Cyan("estimated tokens: %d  cost: %s", res.EstimatedTokens, res.Cost)
		return nil
	}

	if flagStream {
		// Deltas were already written live; just terminate the line.
		fmt.Println()
	} else if strings.HasPrefix(res.Text, session.ErrorPrefix) {
		color.Red("%s", res.Text)
	} else {
		fmt.Println(res.Text)
	}

	if flagStats {
		printStats(res)
	}
	if res.SavedPath != "" {
		color.Green("response saved to %s", res.SavedPath)
	}
	return nil
}

func printStats(res *session.Result) {
	tokens := res.TokenCount
	suffix := ""
	if tokens == 0 {
		tokens = res.EstimatedTokens
		suffix = " (estimated)"
	}
	color.Cyan("tokens: %d%s  cost: %s  duration: %.2fs",
		tokens, suffix, res.Cost, res.Duration.Seconds())
}

func firstUserLine(messages []chat.Message) string {
	for _, m := range messages {
		if m.Role != chat.RoleUser {
			continue
		}
		line := m.Content
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if len(line) > 72 {
			line = line[:72] + "..."
		}
		return line
	}
	return ""
}
