package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/triage"
)

// 任务按钮动作
const (
	actionComplete = "complete"
	actionDelete   = "delete"
	actionArchive  = "archive"
	actionPurge    = "purge"

	taskCallbackPrefix = "task:"
)

// taskCallback 生成任务按钮的回调数据 task:<action>:<id>
func taskCallback(action string, taskID int64) string {
	return taskCallbackPrefix + action + ":" + strconv.FormatInt(taskID, 10)
}

// parseTaskCallback 解析 task:<action>:<id>
func parseTaskCallback(data string) (string, int64, bool) {
	rest, ok := strings.CutPrefix(data, taskCallbackPrefix)
	if !ok {
		return "", 0, false
	}
	action, rawID, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	switch action {
	case actionComplete, actionDelete, actionArchive, actionPurge:
		return action, id, true
	default:
		return "", 0, false
	}
}

// handleCallback 处理内联按钮回调
func (b *Bot) handleCallback(ctx context.Context, query *botModels.CallbackQuery) {
	b.answerCallback(ctx, query.ID)

	userID := query.From.ID
	origin := callbackOrigin(query)
	data := query.Data
	logger.L().Debugf("Callback received: user_id=%d, data=%s", userID, data)

	var err error
	switch {
	case strings.HasPrefix(data, taskCallbackPrefix):
		b.handleTaskCallback(ctx, userID, origin, data)
	case strings.HasPrefix(data, triage.CallbackDraftAccept):
		_, err = b.router.Accept(ctx, userID, origin, strings.TrimPrefix(data, triage.CallbackDraftAccept))
	case strings.HasPrefix(data, triage.CallbackDraftCancel):
		_, err = b.router.Cancel(ctx, userID, origin, strings.TrimPrefix(data, triage.CallbackDraftCancel))
	case data == triage.CallbackBatchFinish:
		err = b.router.FinishBatch(ctx, userID, origin)
	case strings.HasPrefix(data, triage.CallbackGroupDesc):
		err = b.router.AwaitMediaGroupText(ctx, userID, origin, strings.TrimPrefix(data, triage.CallbackGroupDesc))
	default:
		logger.L().Warnf("Unknown callback data: user_id=%d, data=%s", userID, data)
	}

	if err != nil {
		logger.L().Warnf("Callback handling failed: user_id=%d, data=%s, error=%v", userID, data, err)
	}
}

func (b *Bot) handleTaskCallback(ctx context.Context, userID int64, origin triage.Ref, data string) {
	action, taskID, ok := parseTaskCallback(data)
	if !ok {
		logger.L().Warnf("Malformed task callback: user_id=%d, data=%s", userID, data)
		return
	}

	var text string
	switch action {
	case actionComplete:
		text = b.completeTask(ctx, userID, taskID)
	case actionDelete:
		text = b.deleteTask(ctx, userID, taskID)
	case actionArchive:
		text = b.archiveTask(ctx, userID, taskID)
	case actionPurge:
		text = b.purgeArchived(ctx, userID, taskID)
	}
	b.editMessage(ctx, origin.ChatID, origin.MessageID, text)
}

// answerCallback 应答回调，去掉客户端的加载状态
func (b *Bot) answerCallback(ctx context.Context, queryID string) {
	if _, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: queryID}); err != nil {
		logger.L().Debugf("Failed to answer callback query: id=%s, error=%v", queryID, err)
	}
}

// callbackOrigin 回调所在消息的位置；消息不可访问时只保留会话 ID
func callbackOrigin(query *botModels.CallbackQuery) triage.Ref {
	switch {
	case query.Message.Message != nil:
		return triage.Ref{ChatID: query.Message.Message.Chat.ID, MessageID: query.Message.Message.ID}
	case query.Message.InaccessibleMessage != nil:
		return triage.Ref{ChatID: query.Message.InaccessibleMessage.Chat.ID}
	default:
		return triage.Ref{ChatID: query.From.ID}
	}
}
