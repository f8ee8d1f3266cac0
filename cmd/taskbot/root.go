package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"task_bot/internal/app"
	"task_bot/internal/config"
	"task_bot/internal/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taskbot",
		Short:         "Telegram task list bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error.")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json.")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCheckConfigCmd())
	return cmd
}

// loadConfig 读取配置文件与环境变量，命令行参数优先
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(configFile)
	if err != nil {
		return nil, err
	}
	bindFlag(v, cmd, "log.level", "log-level")
	bindFlag(v, cmd, "log.format", "log-format")

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and block until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				logger.L().Fatalf("Failed to initialize application: %v", err)
			}
			defer func() {
				if err := application.Close(context.Background()); err != nil {
					logger.L().Errorf("Failed to close application: %v", err)
				}
			}()

			logger.L().Info("Task bot is running, press Ctrl+C to stop")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("bot stopped with error: %w", err)
			}
			logger.L().Info("Task bot stopped")
			return nil
		},
	}
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range cfg.Summary() {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, "config ok")
			return nil
		},
	}
}
