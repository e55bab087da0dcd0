package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// version is set at build time with -ldflags
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "alertdeck",
		Short:        "Live dashboard service for the crisis alert analysis backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, configFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("backend-url", backend.DefaultURL, "base URL of the analysis backend")
	flags.String("listen", defaultListenAddr, "address of the local dashboard API")
	flags.String("log-level", defaultLogLevel, "log level: debug, info, warn or error")

	cobra.CheckErr(bindFlags(v, flags))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return cmd
}

func run(ctx context.Context, v *viper.Viper, configFile string) error {
	envErr := godotenv.Load()

	if err := configureViper(v, configFile); err != nil {
		return err
	}

	config, err := loadConfiguration(v)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	levelValue, _ := parseLogLevel(config.LogLevel)
	level := zap.NewAtomicLevelAt(levelValue)
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warnw("Failed to load .env file", "error", envErr.Error())
	}

	app, err := NewApp(logger, level, config)
	if err != nil {
		return err
	}

	if err := app.Start(); err != nil {
		if stopErr := app.Stop(); stopErr != nil {
			logger.Warnw("Failed to clean up after start failure", "error", stopErr.Error())
		}
		return err
	}
	app.watchConfiguration(v)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Infow("Shutting down")
	case err := <-app.ServeErrors():
		logger.Errorw("HTTP server failed", "error", err.Error())
	}

	return app.Stop()
}
