package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
	"task_bot/internal/telegram/repository"
	"task_bot/internal/telegram/service"
	"task_bot/internal/telegram/triage"
)

// Config Telegram Bot 配置
type Config struct {
	Token     string // Bot Token
	Debug     bool   // 是否开启调试模式
	Workers   int    // worker 协程数量
	QueueSize int    // 每个 worker 的队列大小
	SendRate  int    // 每秒最多发送的消息数
	SendBurst int    // 允许连续突发的消息数

	Triage          triage.Config
	AttachmentSweep time.Duration // 附件会话清理间隔
	MediaGroupSweep time.Duration // 媒体组清理间隔
}

// Bot Telegram Bot 服务
type Bot struct {
	bot        *bot.Bot
	store      repository.SnapshotStore
	tasks      service.TaskService
	handles    service.HandleService
	router     *triage.Router
	notifier   *notifier
	workerPool *WorkerPool
	sweeper    *sessionSweeper
	commands   map[string]commandHandler
	startTime  time.Time
	stopOnce   sync.Once
}

// New 创建 Telegram Bot 实例
func New(cfg Config, store repository.SnapshotStore, tasks service.TaskService, handles service.HandleService, c clock.Clock) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}

	telegramBot := &Bot{
		store:      store,
		tasks:      tasks,
		handles:    handles,
		workerPool: NewWorkerPool(cfg.Workers, cfg.QueueSize),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.asyncHandler(telegramBot.RecordHandle(telegramBot.handleUpdate))),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		telegramBot.workerPool.Shutdown()
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	telegramBot.notifier = newNotifier(b, newSendThrottle(cfg.SendRate, cfg.SendBurst, c))
	telegramBot.router = triage.NewRouter(cfg.Triage, tasks, telegramBot.notifier, c)
	telegramBot.sweeper = newSessionSweeper(telegramBot.router, c, cfg.AttachmentSweep, cfg.MediaGroupSweep)
	telegramBot.registerCommands()

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// Start 启动 Bot（阻塞直到 ctx 取消）
func (b *Bot) Start(ctx context.Context) error {
	logger.L().Info("Starting Telegram bot...")
	b.startTime = time.Now()
	b.sweeper.start()

	b.bot.Start(ctx)

	b.Stop(context.Background())
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop 停止后台任务并等待进行中的 handler 完成
// 长轮询通过 Start 的 ctx 取消结束
func (b *Bot) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		logger.L().Info("Stopping Telegram bot...")
		b.sweeper.stop()
		b.workerPool.Shutdown()
		b.router.Stop()
	})
	return nil
}

// asyncHandler 将 handler 提交到工作池，按用户分片保证单用户顺序
func (b *Bot) asyncHandler(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		b.workerPool.Submit(HandlerTask{
			Ctx:         ctx,
			BotInstance: botInstance,
			Update:      update,
			Handler:     next,
			Key:         updateUserID(update),
		})
	}
}

// handleUpdate 入口：回调、命令与普通消息
func (b *Bot) handleUpdate(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, botInstance, update)
	}
}

func (b *Bot) handleMessage(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if name, args := parseCommand(msg.Text); name != "" {
		handler, ok := b.commands[name]
		if !ok {
			logger.L().Debugf("Unknown command ignored: user_id=%d, command=%s", msg.From.ID, name)
			return
		}
		logger.L().Debugf("Command received: user_id=%d, command=%s", msg.From.ID, name)
		handler(ctx, msg, args)
		return
	}

	b.RequirePrivateChat(b.handleTriage)(ctx, botInstance, update)
}

// handleTriage 非命令消息交给分拣核心
func (b *Bot) handleTriage(ctx context.Context, _ *bot.Bot, update *botModels.Update) {
	incoming := Normalize(update.Message)
	if err := b.router.Handle(ctx, incoming); err != nil {
		logger.L().Warnf("Triage handling failed: user_id=%d, error=%v", incoming.SenderID, err)
	}
}
