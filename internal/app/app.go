package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"task_bot/internal/clock"
	"task_bot/internal/config"
	"task_bot/internal/logger"
	"task_bot/internal/mongo"
	"task_bot/internal/telegram"
	"task_bot/internal/telegram/repository"
	"task_bot/internal/telegram/service"
	"task_bot/internal/telegram/triage"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB     *mongo.Client
	Store       repository.SnapshotStore
	Tasks       *service.TaskServiceImpl
	Handles     *service.HandleServiceImpl
	TelegramBot *telegram.Bot
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会清理已初始化的部分并返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}
	c := clock.New()

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init storage failed: %w", err)
	}
	app.Store = store
	logger.L().Infof("Storage initialized: driver=%s", cfg.Storage.Driver)

	app.Tasks = service.NewTaskService(store, c)
	app.Tasks.Load(ctx)
	app.Handles = service.NewHandleService(store, c)
	app.Handles.Load(ctx)

	app.TelegramBot, err = telegram.New(botConfig(cfg), store, app.Tasks, app.Handles, c)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}

	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (repository.SnapshotStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.DBName,
			Timeout:  cfg.Mongo.Timeout,
			AppName:  "task_bot",
		})
		if err != nil {
			return nil, err
		}
		a.MongoDB = client
		return repository.NewMongoSnapshotStore(client.Database()), nil
	case config.DriverSQLite:
		return repository.NewSQLiteSnapshotStore(cfg.Storage.DataDir)
	case config.DriverFile:
		return repository.NewFileSnapshotStore(cfg.Storage.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func botConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:     cfg.TelegramToken,
		Debug:     cfg.Debug,
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		SendRate:  cfg.SendRate,
		SendBurst: cfg.SendBurst,
		Triage: triage.Config{
			ForwardWindow:   cfg.Triage.ForwardWindow,
			ForwardMax:      cfg.Triage.ForwardMax,
			MediaGroupDelay: cfg.Triage.MediaGroupDelay,
			MediaGroupTTL:   cfg.Triage.MediaGroupTTL,
			AttachmentTTL:   cfg.Triage.AttachmentTTL,
		},
		AttachmentSweep: cfg.Triage.AttachmentSweep,
		MediaGroupSweep: cfg.Triage.MediaGroupSweep,
	}
}

// Run 运行 Bot，直到 ctx 取消；退出前把任务集合再写一次
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.TelegramBot.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info("Shutdown signal received, flushing tasks...")
		if err := a.TelegramBot.Stop(context.Background()); err != nil {
			return err
		}
		if err := a.Tasks.Flush(context.Background()); err != nil {
			return fmt.Errorf("final flush failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			firstErr = fmt.Errorf("close storage failed: %w", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return firstErr
}
