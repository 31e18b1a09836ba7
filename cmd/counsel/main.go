package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zoobzio/counsel"
	"github.com/zoobzio/counsel/internal/config"
	"github.com/zoobzio/counsel/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool

	// Per-command flags
	userID    string
	sessionID string
	goals     []string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "Executive coaching advisor",
	Long: `counsel answers business questions by routing them to a specialist
(revenue, leadership, operations or financial), then enriching the answer
with action items, recommendations and a confidence score.

Configuration is read from the environment (OPENAI_API_KEY, DATABASE_URL,
NATS_URL, HTTP_ADDR, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = newLogger(cfg.LogLevel, verbose)
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

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the advisory HTTP API",
	Long: `Starts the HTTP API:
  GET  /health
  POST /api/process
  GET  /api/briefing/{userId}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and print the response as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var briefingCmd = &cobra.Command{
	Use:   "briefing [user-id]",
	Short: "Print a daily briefing for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runBriefing,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	askCmd.Flags().StringVar(&userID, "user", "cli", "User the question is asked for")
	askCmd.Flags().StringVar(&sessionID, "session", "", "Session identifier")
	askCmd.Flags().StringSliceVar(&goals, "goal", nil, "Goal to take into account (repeatable)")

	rootCmd.AddCommand(serveCmd, askCmd, briefingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return server.New(cfg.HTTPAddr, a.orchestrator, logger, cfg.ShutdownTimeout).Run(ctx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.orchestrator.ProcessQuery(ctx, counsel.Query{
		UserID:    userID,
		SessionID: sessionID,
		Text:      strings.Join(args, " "),
		Goals:     goals,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runBriefing(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	briefing, err := a.orchestrator.GenerateDailyBriefing(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), briefing)
	return nil
}
