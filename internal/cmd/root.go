package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/niels/mini-http/pkg/accesslog"
	"github.com/niels/mini-http/pkg/config"
	"github.com/niels/mini-http/pkg/logging"
	"github.com/niels/mini-http/pkg/server"
	"github.com/niels/mini-http/pkg/stats"
	"github.com/niels/mini-http/pkg/version"
)

var (
	configPath    string
	rootDir       string
	debug         bool
	workers       int
	timeout       time.Duration
	accessLogPath string
	showVersion   bool
	noColor       bool
	cfg           *config.Config
)

// NewRootCmd creates the root command for mini-http
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   version.AppName + " <port>",
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Serves the files beneath a root directory over HTTP/1.1. Each connection
carries exactly one GET request and is closed after the response.
`, version.AppName, version.Description),
		Args:          validatePortArg,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || noColor

			cfg = config.Default()
			if configPath != "" {
				cfg = config.LoadOrDefault(configPath)
			}

			applyFlags(cmd, cfg)
			if len(args) == 1 {
				port, _ := strconv.Atoi(args[0])
				cfg.Server.Port = port
			}

			logging.InitGlobalLogger(debug, cfg)
			if debug {
				logging.Debug("Debug logging enabled")
			}
			if configPath != "" {
				logging.InfoWith("Loaded configuration", map[string]interface{}{
					"path": configPath,
				})
			}

			if showVersion {
				return nil
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}

			// Arguments are fine from here on, so runtime failures skip the usage text
			cmd.SilenceUsage = true

			return run(cmd, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "Directory to serve files from")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Maximum number of connections handled at once")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Per-connection deadline (0 disables)")
	rootCmd.PersistentFlags().StringVar(&accessLogPath, "access-log", "", "Write an access log to this file")
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	return rootCmd
}

// validatePortArg requires exactly one argument, a TCP port in 1-65535
func validatePortArg(cmd *cobra.Command, args []string) error {
	if showVersion {
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one argument <port>, got %d", len(args))
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q: not a number", args[0])
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return nil
}

// applyFlags copies explicitly set flags over the configuration
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Server.Root = rootDir
	}
	if flags.Changed("workers") {
		cfg.Server.MaxConns = workers
	}
	if flags.Changed("timeout") {
		cfg.Server.ConnTimeout = int(timeout / time.Millisecond)
	}
	if flags.Changed("access-log") {
		cfg.Server.AccessLogPath = accessLogPath
	}
}

// run serves until interrupted
func run(cmd *cobra.Command, cfg *config.Config) error {
	accessLog, err := accesslog.NewLogger(cfg.Server.AccessLogPath, accesslog.Rotation{
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}
	defer accessLog.Close()

	tracker := stats.NewConsoleTracker().WithWriter(cmd.OutOrStdout())
	srv := server.New(cfg).
		WithTracker(tracker).
		WithAccessLog(accessLog)

	if err := srv.Listen(); err != nil {
		logging.ErrorWith("Startup failed", map[string]interface{}{
			"error": err,
		})
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s, serving %s\n",
		color.GreenString(version.ServerHeader()),
		color.CyanString(srv.Addr().String()),
		cfg.Server.Root)

	if err := srv.Serve(ctx); err != nil {
		logging.ErrorWith("Server failed", map[string]interface{}{
			"error": err,
		})
		return err
	}
	return nil
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
