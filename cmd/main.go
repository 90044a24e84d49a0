package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/migrate"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title HR auth server
// @version 1.0
// @description Аутентификация и сессии HR-дашборда

// @host localhost:4000
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "hr-auth-server",
		Short:         "Сервис аутентификации HR-дашборда",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "путь к yaml конфигурации")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP сервер",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	var down bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), configPath, down)
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "откатить последнюю миграцию")

	root.AddCommand(serveCmd, migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfigAndLogger(path string) (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	logger, err := config.SetupLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка создания логгера: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return cfg, logger, nil
}

func runMigrations(ctx context.Context, configPath string, down bool) error {
	cfg, logger, err := loadConfigAndLogger(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.SetupDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("ошибка при закрытии БД", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if down {
		err = migrate.Down(ctx, db.DB.DB)
	} else {
		err = migrate.Up(ctx, db.DB.DB)
	}
	if err != nil {
		return err
	}

	logger.Info("миграции применены", zap.Bool("down", down))
	return nil
}
