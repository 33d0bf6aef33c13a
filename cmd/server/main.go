package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomrelay/internal/app"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/log"
)

type flags struct {
	configPath string
	logLevel   string
	port       int
	autoStart  bool
	statusAddr string
	dbPath     string
	noConsole  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "roomrelay",
		Short:         "Room rendezvous server speaking a line-oriented command protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to config file (default ./config.yaml)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
	fs.IntVar(&f.port, "port", 0, "client listener port")
	fs.BoolVar(&f.autoStart, "auto-start", false, "start listening without waiting for the console start command")
	fs.StringVar(&f.statusAddr, "status-addr", "", "HTTP status and websocket gateway address, empty disables it")
	fs.StringVar(&f.dbPath, "db", "", "SQLite journal path, empty disables journaling")
	fs.BoolVar(&f.noConsole, "no-console", false, "disable the operator console on stdin")

	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	bootLevel := f.logLevel
	if bootLevel == "" {
		bootLevel = "info"
	}
	bootLogger := log.New(bootLevel)

	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.UpdateFrom(config.Config{
		Port:         f.port,
		LogLevel:     f.logLevel,
		StatusAddr:   f.statusAddr,
		DatabasePath: f.dbPath,
	})
	if cmd.Flags().Changed("auto-start") {
		cfg.AutoStart = f.autoStart
	}
	if f.noConsole {
		cfg.Console = false
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Int("port", cfg.Port).Bool("auto_start", cfg.AutoStart).Msg("configuration loaded")

	application, err := app.New(cfg, logger, app.WithConsoleIO(os.Stdin, os.Stdout))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
