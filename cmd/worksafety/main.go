package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"worksafety/config"
	"worksafety/core/utils"
)

type globals struct {
	configPath string
	cfg        *config.AppConfig
	logger     *utils.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "worksafety",
		Short:         "Workplace safety incident tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			logger, err := utils.NewLogger(cfg.LogLevel, cfg.AppEnv)
			if err != nil {
				return err
			}
			g.cfg, g.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("WORKSAFETY_CONFIG"), "Path to the YAML config file")

	rootCmd.AddCommand(
		serveCommand(g),
		migrateCommand(g),
		bonusCommand(g),
		userCommand(g),
	)
	return rootCmd
}
