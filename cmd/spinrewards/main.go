package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "github.com/Digital-Creators-Team/spin-rewards/docs" // Swagger docs
)

// @title           Spin Rewards API
// @version         1.0
// @description     Operator API for the reward wheel: queue, spins, settlement and export

// @host
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	version = getVersion()

	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
)

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "spinrewards",
		Short:   "Reward wheel engine for channel-point redemptions",
		Version: version,
		Long: `spinrewards runs the reward wheel: it ingests channel-point redemptions,
draws prizes on a weighted wheel, and pays winners in one ERC-20 batch.

The serve command runs the engine and its operator API. The other commands
work offline against the persisted state and should be run while the
server is stopped.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config-development.yaml", "Config file")

	loadConfig := func() (*config.Config, zerolog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, logging.New(cfg.Logging), nil
	}

	rootCmd.AddCommand(
		newServeCmd(loadConfig),
		newExportCmd(loadConfig),
		newSettleCmd(loadConfig),
		newTokenCmd(loadConfig),
		newSegmentsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		danger.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:errcheck
		stop()
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, zerolog.Logger, error)

func newServeCmd(load configLoader) *cobra.Command {
	var segmentsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			svc, cleanup, err := initializeService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if segmentsPath != "" {
				segments, err := wheel.LoadSegments(segmentsPath)
				if err != nil {
					return err
				}
				svc.Segments = segments
			}

			logger.Info().Int("port", cfg.Server.Port).Str("version", version).Msg("Starting spin rewards service")
			return svc.Run()
		},
	}
	cmd.Flags().StringVarP(&segmentsPath, "segments", "s", "", "Segment YAML file or directory, replaces the saved wheel")
	return cmd
}
