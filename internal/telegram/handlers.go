package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/service"
)

// commandHandler 命令处理函数，args 为命令后的参数文本
type commandHandler func(ctx context.Context, msg *botModels.Message, args string)

// registerCommands 注册所有命令处理器
func (b *Bot) registerCommands() {
	b.commands = map[string]commandHandler{
		// 基础命令
		"start": b.handleStart,
		"help":  b.handleStart,
		"ping":  b.handlePing,

		// 任务管理
		"add":      b.handleAdd,
		"addfor":   b.handleAddFor,
		"list":     b.handleList,
		"view":     b.handleView,
		"complete": b.handleComplete,
		"delete":   b.handleDelete,
		"archive":  b.handleArchive,
		"archived": b.handleArchived,
		"stats":    b.handleStats,
		"save":     b.handleSave,

		// 分拣状态
		"collect": b.handleCollect,
		"done":    b.handleDone,
		"discard": b.handleDiscard,
		"edit":    b.handleEdit,
		"cancel":  b.handleCancel,
	}
	logger.L().Debugf("Registered %d commands", len(b.commands))
}

const welcomeText = `🤖 <b>Task Recording Bot</b>

Welcome! I can help you manage your tasks.

<b>Available commands:</b>
/add &lt;task&gt; - Add a new task
/addfor @user &lt;task&gt; - Add a task to another user's list
/list - Show all your tasks
/view &lt;task_id&gt; - Show a task with its attachments
/complete &lt;task_id&gt; - Mark task as completed
/delete &lt;task_id&gt; - Delete a task
/archive &lt;task_id&gt; - Archive a completed task
/archived - List all archived tasks
/archived &lt;task_id&gt; - View specific archived task
/edit &lt;task_id&gt; - Change a task's text
/stats - Show task statistics
/save - Save all tasks now
/help - Show this help message

<b>Attachments:</b>
/collect - Start collecting attachments
/done &lt;task&gt; - Create one task with the collected attachments
/discard - Stop collecting and drop the attachments
/cancel - Cancel whatever is in progress

<b>Smart Features:</b>
📨 Forward any message to convert it to a task
📨 Forward several messages in a row to merge them into one task
📎 Send photos, documents, or media to create tasks
💬 Send regular text messages to create tasks

<b>Example:</b>
<code>/add Buy groceries</code>
<code>/complete 1</code>
<code>/archive 1</code>`

// handleStart 处理 /start 与 /help 命令
func (b *Bot) handleStart(ctx context.Context, msg *botModels.Message, _ string) {
	b.sendMessage(ctx, msg.Chat.ID, welcomeText)
}

// handlePing 处理 /ping 命令
func (b *Bot) handlePing(ctx context.Context, msg *botModels.Message, _ string) {
	b.sendMessage(ctx, msg.Chat.ID, b.buildPingMessage(ctx))
}

// handleAdd 处理 /add 命令
func (b *Bot) handleAdd(ctx context.Context, msg *botModels.Message, args string) {
	if args == "" {
		b.sendMessage(ctx, msg.Chat.ID, "Please provide a task description.\nExample: <code>/add Buy groceries</code>")
		return
	}

	task, err := b.tasks.Add(ctx, msg.From.ID, models.NewTask{Text: args})
	if err != nil {
		logger.L().Errorf("Failed to add task: user_id=%d, error=%v", msg.From.ID, err)
		b.sendErrorMessage(ctx, msg.Chat.ID, "Failed to save task, please try again.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, formatTaskAdded(task))
}

// handleAddFor 处理 /addfor @user 命令（为其他用户添加任务）
func (b *Bot) handleAddFor(ctx context.Context, msg *botModels.Message, args string) {
	handle, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(handle, "@") || text == "" {
		b.sendMessage(ctx, msg.Chat.ID, "Please provide a user and a task description.\nExample: <code>/addfor @alice Review the report</code>")
		return
	}

	targetID, err := b.handles.Resolve(handle)
	if err != nil {
		if errors.Is(err, service.ErrHandleNotFound) {
			b.sendErrorMessage(ctx, msg.Chat.ID, fmt.Sprintf("User %s is unknown. They need to message the bot first.", escape(handle)))
			return
		}
		b.sendErrorMessage(ctx, msg.Chat.ID, "Failed to resolve user, please try again.")
		return
	}

	task, err := b.tasks.Add(ctx, targetID, models.NewTask{Text: text, AssignedBy: msg.From.ID})
	if err != nil {
		logger.L().Errorf("Failed to add task for user: from=%d, target=%d, error=%v", msg.From.ID, targetID, err)
		b.sendErrorMessage(ctx, msg.Chat.ID, "Failed to save task, please try again.")
		return
	}

	logger.L().Infof("Task assigned: from=%d, target=%d, task_id=%d", msg.From.ID, targetID, task.ID)
	b.sendSuccessMessage(ctx, msg.Chat.ID, fmt.Sprintf("Task #%d added for %s.", task.ID, escape(handle)))
	if targetID != msg.From.ID {
		b.sendMessage(ctx, targetID, fmt.Sprintf("📬 New task from %s\n\n<b>Task #%d:</b> %s",
			escape(senderLabel(msg.From)), task.ID, escapeLimit(task.Text, detailTextLimit)))
	}
}

// handleList 处理 /list 命令
func (b *Bot) handleList(ctx context.Context, msg *botModels.Message, _ string) {
	tasks := b.tasks.Tasks(msg.From.ID)
	if len(tasks) == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "📝 You have no tasks yet. Use /add to create one!")
		return
	}
	for _, page := range formatTaskList(tasks) {
		b.sendMessage(ctx, msg.Chat.ID, page.Text, taskListKeyboard(tasks[page.From:page.To]))
	}
}

// handleView 处理 /view 命令，附件通过 notifier 重新发送
func (b *Bot) handleView(ctx context.Context, msg *botModels.Message, args string) {
	taskID, ok := b.requireTaskID(ctx, msg, args, "view")
	if !ok {
		return
	}

	task, err := b.tasks.Task(msg.From.ID, taskID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, fmt.Sprintf("Task #%d not found.", taskID))
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, formatTaskDetail(task))
	for _, att := range task.Media.Attachments() {
		if err := b.notifier.SendMedia(ctx, msg.Chat.ID, att, ""); err != nil {
			logger.L().Warnf("Failed to resend attachment: user_id=%d, task_id=%d, kind=%s, error=%v", msg.From.ID, taskID, att.Kind, err)
		}
	}
}

// handleComplete 处理 /complete 命令
func (b *Bot) handleComplete(ctx context.Context, msg *botModels.Message, args string) {
	taskID, ok := b.requireTaskID(ctx, msg, args, "complete")
	if !ok {
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, b.completeTask(ctx, msg.From.ID, taskID))
}

// handleDelete 处理 /delete 命令
func (b *Bot) handleDelete(ctx context.Context, msg *botModels.Message, args string) {
	taskID, ok := b.requireTaskID(ctx, msg, args, "delete")
	if !ok {
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, b.deleteTask(ctx, msg.From.ID, taskID))
}

// handleArchive 处理 /archive 命令
func (b *Bot) handleArchive(ctx context.Context, msg *botModels.Message, args string) {
	taskID, ok := b.requireTaskID(ctx, msg, args, "archive")
	if !ok {
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, b.archiveTask(ctx, msg.From.ID, taskID))
}

// handleArchived 处理 /archived [id] 命令
func (b *Bot) handleArchived(ctx context.Context, msg *botModels.Message, args string) {
	if args == "" {
		archived := b.tasks.ArchivedTasks(msg.From.ID)
		if len(archived) == 0 {
			b.sendMessage(ctx, msg.Chat.ID, "📦 You have no archived tasks.")
			return
		}
		for _, page := range formatArchivedList(archived) {
			b.sendMessage(ctx, msg.Chat.ID, page.Text)
		}
		return
	}

	taskID, ok := parseTaskID(args)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "Please provide a valid task ID number.")
		return
	}
	task, err := b.tasks.ArchivedTask(msg.From.ID, taskID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, fmt.Sprintf("Archived task #%d not found.", taskID))
		return
	}

	keyboard := &botModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botModels.InlineKeyboardButton{{
			{Text: "🗑 Delete Permanently", CallbackData: taskCallback(actionPurge, task.ID)},
		}},
	}
	b.sendMessage(ctx, msg.Chat.ID, formatArchivedDetail(task), keyboard)
}

// handleStats 处理 /stats 命令
func (b *Bot) handleStats(ctx context.Context, msg *botModels.Message, _ string) {
	stats := b.tasks.Stats(msg.From.ID)
	if stats.Total == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "📊 No tasks to show statistics for.")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, formatStats(stats))
}

// handleSave 处理 /save 命令
func (b *Bot) handleSave(ctx context.Context, msg *botModels.Message, _ string) {
	if err := b.tasks.Flush(ctx); err != nil {
		logger.L().Errorf("Manual save failed: user_id=%d, error=%v", msg.From.ID, err)
		b.sendErrorMessage(ctx, msg.Chat.ID, "Failed to save tasks, please try again.")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, "💾 All tasks saved.")
}

// handleCollect 处理 /collect 命令
func (b *Bot) handleCollect(ctx context.Context, msg *botModels.Message, _ string) {
	if err := b.router.StartCollecting(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		logger.L().Warnf("Failed to start collecting: user_id=%d, error=%v", msg.From.ID, err)
	}
}

// handleDone 处理 /done <text> 命令
func (b *Bot) handleDone(ctx context.Context, msg *botModels.Message, args string) {
	if _, err := b.router.Commit(ctx, msg.From.ID, msg.Chat.ID, args); err != nil {
		logger.L().Warnf("Failed to commit attachments: user_id=%d, error=%v", msg.From.ID, err)
	}
}

// handleDiscard 处理 /discard 命令
func (b *Bot) handleDiscard(ctx context.Context, msg *botModels.Message, _ string) {
	if err := b.router.StopCollecting(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		logger.L().Warnf("Failed to stop collecting: user_id=%d, error=%v", msg.From.ID, err)
	}
}

// handleEdit 处理 /edit <id> 命令
func (b *Bot) handleEdit(ctx context.Context, msg *botModels.Message, args string) {
	taskID, ok := b.requireTaskID(ctx, msg, args, "edit")
	if !ok {
		return
	}
	if err := b.router.BeginEdit(ctx, msg.From.ID, msg.Chat.ID, taskID); err != nil {
		logger.L().Warnf("Failed to begin edit: user_id=%d, task_id=%d, error=%v", msg.From.ID, taskID, err)
	}
}

// handleCancel 处理 /cancel 命令
func (b *Bot) handleCancel(ctx context.Context, msg *botModels.Message, _ string) {
	if err := b.router.CancelAll(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		logger.L().Warnf("Failed to cancel: user_id=%d, error=%v", msg.From.ID, err)
	}
}

// requireTaskID 解析任务 ID，缺失或非法时回复用法
func (b *Bot) requireTaskID(ctx context.Context, msg *botModels.Message, args, command string) (int64, bool) {
	if args == "" {
		b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Please provide a task ID.\nExample: <code>/%s 1</code>", command))
		return 0, false
	}
	taskID, ok := parseTaskID(args)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "Please provide a valid task ID number.")
		return 0, false
	}
	return taskID, true
}

// completeTask 完成任务并返回回复文本（命令与按钮共用）
func (b *Bot) completeTask(ctx context.Context, userID, taskID int64) string {
	if _, err := b.tasks.Complete(ctx, userID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return fmt.Sprintf("❌ Task #%d not found.", taskID)
		}
		logger.L().Errorf("Failed to complete task: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return "❌ Failed to save task, please try again."
	}
	return fmt.Sprintf("✅ Task #%d marked as completed!", taskID)
}

// deleteTask 删除任务并返回回复文本
func (b *Bot) deleteTask(ctx context.Context, userID, taskID int64) string {
	if err := b.tasks.Delete(ctx, userID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return fmt.Sprintf("❌ Task #%d not found.", taskID)
		}
		logger.L().Errorf("Failed to delete task: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return "❌ Failed to save task, please try again."
	}
	return fmt.Sprintf("🗑 Task #%d deleted successfully!", taskID)
}

// archiveTask 归档任务并返回回复文本
func (b *Bot) archiveTask(ctx context.Context, userID, taskID int64) string {
	if _, err := b.tasks.Archive(ctx, userID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) || errors.Is(err, service.ErrTaskNotCompleted) {
			return fmt.Sprintf("❌ Task #%d not found or not completed.", taskID)
		}
		logger.L().Errorf("Failed to archive task: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return "❌ Failed to save task, please try again."
	}
	return fmt.Sprintf("📦 Task #%d archived successfully!", taskID)
}

// purgeArchived 永久删除归档任务并返回回复文本
func (b *Bot) purgeArchived(ctx context.Context, userID, taskID int64) string {
	if err := b.tasks.DeleteArchived(ctx, userID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return fmt.Sprintf("❌ Task #%d not found in archived tasks.", taskID)
		}
		logger.L().Errorf("Failed to purge archived task: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return "❌ Failed to save task, please try again."
	}
	return fmt.Sprintf("🗑 Task #%d permanently deleted!", taskID)
}

func formatTaskAdded(task *models.Task) string {
	return fmt.Sprintf("✅ Task added successfully!\n<b>Task #%d:</b> %s\n<b>Status:</b> %s\n<b>Created:</b> %s",
		task.ID, escapeLimit(task.Text, detailTextLimit), task.Status, task.CreatedAt.Format("2006-01-02 15:04"))
}

const (
	// listTextLimit 列表中单个任务文本的最大长度
	listTextLimit = 200
	// detailTextLimit 单任务消息中转义后文本的最大长度
	detailTextLimit = 3000
)

// formatTaskList 每个任务一个条目，超过消息上限时分页
func formatTaskList(tasks []*models.Task) []htmlPage {
	entries := make([]string, 0, len(tasks))
	for _, task := range tasks {
		var sb strings.Builder
		emoji := "⏳"
		if task.IsCompleted() {
			emoji = "✅"
		}
		fmt.Fprintf(&sb, "%s <b>#%d</b> %s\n", emoji, task.ID, escape(truncateRunes(task.Text, listTextLimit)))
		if task.MessageLink != "" {
			fmt.Fprintf(&sb, "   🔗 <a href=\"%s\">Original Message</a>\n", escape(task.MessageLink))
		}
		if task.Media != nil {
			fmt.Fprintf(&sb, "   %s\n", escape(task.Media.Summary()))
		}
		fmt.Fprintf(&sb, "   📅 %s", task.CreatedAt.Format("01/02"))
		if task.IsCompleted() && task.CompletedAt != nil {
			fmt.Fprintf(&sb, " → ✅ %s", task.CompletedAt.Format("01/02"))
		}
		sb.WriteString("\n\n")
		entries = append(entries, sb.String())
	}
	return paginate("📋 <b>Your Tasks:</b>\n\n", entries, "")
}

// taskListKeyboard 每个任务一行按钮：未完成为 完成/删除，已完成为 归档/删除
func taskListKeyboard(tasks []*models.Task) *botModels.InlineKeyboardMarkup {
	rows := make([][]botModels.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		first := botModels.InlineKeyboardButton{
			Text:         fmt.Sprintf("✅ Complete #%d", task.ID),
			CallbackData: taskCallback(actionComplete, task.ID),
		}
		if task.IsCompleted() {
			first = botModels.InlineKeyboardButton{
				Text:         fmt.Sprintf("📦 Archive #%d", task.ID),
				CallbackData: taskCallback(actionArchive, task.ID),
			}
		}
		rows = append(rows, []botModels.InlineKeyboardButton{
			first,
			{Text: fmt.Sprintf("🗑 Delete #%d", task.ID), CallbackData: taskCallback(actionDelete, task.ID)},
		})
	}
	return &botModels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func formatTaskDetail(task *models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 <b>Task #%d</b>\n\n", task.ID)
	fmt.Fprintf(&sb, "<b>Task:</b> %s\n", escapeLimit(task.Text, detailTextLimit))
	fmt.Fprintf(&sb, "<b>Status:</b> %s\n", task.Status)
	fmt.Fprintf(&sb, "<b>Created:</b> %s\n", task.CreatedAt.Format("2006-01-02 15:04"))
	if task.CompletedAt != nil {
		fmt.Fprintf(&sb, "<b>Completed:</b> %s\n", task.CompletedAt.Format("2006-01-02 15:04"))
	}
	if task.MessageLink != "" {
		fmt.Fprintf(&sb, "🔗 %s\n", escape(task.MessageLink))
	}
	if task.Media != nil {
		fmt.Fprintf(&sb, "%s\n", escape(task.Media.Summary()))
	}
	if n := len(task.EditHistory); n > 0 {
		fmt.Fprintf(&sb, "✏️ Edited %d time(s)\n", n)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatArchivedList(archived []*models.ArchivedTask) []htmlPage {
	entries := make([]string, 0, len(archived))
	for _, task := range archived {
		completed := "N/A"
		if task.CompletedAt != nil {
			completed = task.CompletedAt.Format("01/02")
		}
		entries = append(entries, fmt.Sprintf("✅ <b>#%d</b> %s\n   📅 Created: %s | Completed: %s | Archived: %s\n\n",
			task.ID, escape(truncateRunes(task.Text, listTextLimit)),
			task.CreatedAt.Format("01/02"), completed, task.ArchivedAt.Format("01/02")))
	}
	return paginate("📦 <b>Your Archived Tasks:</b>\n\n", entries,
		"\n\nUse /archived &lt;task_id&gt; to view details of a specific archived task.")
}

func formatArchivedDetail(task *models.ArchivedTask) string {
	completed := "N/A"
	if task.CompletedAt != nil {
		completed = task.CompletedAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("📦 <b>Archived Task #%d</b>\n\n<b>Task:</b> %s\n<b>Status:</b> %s\n<b>Created:</b> %s\n<b>Completed:</b> %s\n<b>Archived:</b> %s",
		task.ID, escapeLimit(task.Text, detailTextLimit), task.Status,
		task.CreatedAt.Format("2006-01-02 15:04"), completed, task.ArchivedAt.Format("2006-01-02 15:04"))
}

func formatStats(stats models.TaskStats) string {
	return fmt.Sprintf("📊 <b>Task Statistics</b>\n\n📝 Total tasks: %d\n✅ Completed: %d\n⏳ Pending: %d\n📈 Completion rate: %.1f%%",
		stats.Total, stats.Completed, stats.Pending, stats.CompletionRate)
}

// senderLabel 指派通知中的发送者名称
func senderLabel(u *botModels.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}
