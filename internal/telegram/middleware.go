package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/logger"
)

// RecordHandle 中间件：记录发送者的 @username，供 /addfor 解析
func (b *Bot) RecordHandle(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		var from *botModels.User
		switch {
		case update.Message != nil:
			from = update.Message.From
		case update.CallbackQuery != nil:
			from = &update.CallbackQuery.From
		}

		if from != nil && from.Username != "" && b.handles != nil {
			if err := b.handles.Record(ctx, from.ID, from.Username); err != nil {
				logger.L().Warnf("Failed to record user handle: user_id=%d, error=%v", from.ID, err)
			}
		}

		next(ctx, botInstance, update)
	}
}

// RequirePrivateChat 中间件：任务列表按用户私有，群聊中的消息不做处理
func (b *Bot) RequirePrivateChat(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message != nil && update.Message.Chat.Type != botModels.ChatTypePrivate {
			logger.L().Debugf("Ignoring non-private message: chat_id=%d, type=%s", update.Message.Chat.ID, update.Message.Chat.Type)
			return
		}
		next(ctx, botInstance, update)
	}
}
