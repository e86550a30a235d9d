package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newthinker/quantcore/internal/app"
	"github.com/newthinker/quantcore/internal/config"
	"github.com/newthinker/quantcore/internal/logger"
	"github.com/newthinker/quantcore/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live trading engine",
	Long:  "Start the tick loop, strategies, risk sampler and order books, feeding from collaborator records on stdin.",
	RunE:  runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	application, err := app.New(cfg, log,
		app.WithMetrics(metrics.NewRegistry()),
		app.WithEmitter(func(record string) { fmt.Println(record) }),
	)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application.Start(ctx)

	// Drain collaborator records from stdin into the feed.
	go func() {
		lines := application.Lines()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
	}()

	log.Info("engine running; send SIGINT/SIGTERM to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	application.Stop()
	return nil
}
