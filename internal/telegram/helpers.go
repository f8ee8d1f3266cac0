package telegram

import (
	"context"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/logger"
)

// maxMessageRunes Telegram 单条消息长度上限留出余量
// HTML 消息只能按完整条目分页，不能截断已转义的文本
const maxMessageRunes = 4000

// sendMessage 发送消息（统一错误处理，使用 HTML 格式）
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, markup ...botModels.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: botModels.ParseModeHTML,
		LinkPreviewOptions: &botModels.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	}
	if len(markup) > 0 && markup[0] != nil {
		params.ReplyMarkup = markup[0]
	}

	if err := b.notifier.wait(ctx); err != nil {
		logger.L().Warnf("Send aborted: chat_id=%d, error=%v", chatID, err)
		return
	}
	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		logger.L().Errorf("Failed to send message to chat %d: %v", chatID, err)
	}
}

// editMessage 编辑回调所在消息（HTML 格式），内容未变化时忽略
func (b *Bot) editMessage(ctx context.Context, chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.sendMessage(ctx, chatID, text)
		return
	}
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: botModels.ParseModeHTML,
	}
	if _, err := b.bot.EditMessageText(ctx, params); err != nil && !isNotModified(err) {
		logger.L().Errorf("Failed to edit message: chat_id=%d, message_id=%d, error=%v", chatID, messageID, err)
	}
}

// sendErrorMessage 发送错误消息
func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, message string) {
	b.sendMessage(ctx, chatID, "❌ "+message)
}

// sendSuccessMessage 发送成功消息
func (b *Bot) sendSuccessMessage(ctx context.Context, chatID int64, message string) {
	b.sendMessage(ctx, chatID, "✅ "+message)
}

// parseCommand 拆分命令与参数，去掉 /cmd@botname 的后缀
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	name, args, _ := strings.Cut(text[1:], " ")
	if idx := strings.IndexAny(name, "\n\t"); idx >= 0 {
		args = name[idx+1:] + " " + args
		name = name[:idx]
	}
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}

// parseTaskID 解析任务 ID 参数
func parseTaskID(arg string) (int64, bool) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// escape 转义用户内容以嵌入 HTML 消息
func escape(s string) string {
	return html.EscapeString(s)
}

// truncateRunes 按字符截断
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// escapeLimit 转义用户内容，转义后超过 limit 个字符时在完整字符或实体处截断
func escapeLimit(s string, limit int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}

	var sb strings.Builder
	used := 0
	for _, r := range s {
		piece := html.EscapeString(string(r))
		n := utf8.RuneCountInString(piece)
		if used+n > limit {
			break
		}
		sb.WriteString(piece)
		used += n
	}
	return sb.String() + "..."
}

// htmlPage 分页消息，包含 entries[From:To]
type htmlPage struct {
	Text     string
	From, To int
}

// paginate 按完整条目把 HTML 列表拆成多条消息
// header 只出现在第一页，footer 只出现在最后一页；单个条目需自行控制在上限以内
func paginate(header string, entries []string, footer string) []htmlPage {
	var pages []htmlPage
	var body strings.Builder
	body.WriteString(header)
	size := utf8.RuneCountInString(header)
	from := 0

	emit := func(to int, tail string) {
		text := strings.TrimRight(body.String(), "\n")
		if text == "" {
			tail = strings.TrimLeft(tail, "\n")
		}
		pages = append(pages, htmlPage{Text: text + tail, From: from, To: to})
		body.Reset()
		size = 0
		from = to
	}

	for i, entry := range entries {
		n := utf8.RuneCountInString(entry)
		if size+n > maxMessageRunes && i > from {
			emit(i, "")
		}
		body.WriteString(entry)
		size += n
	}

	if footer != "" && size+utf8.RuneCountInString(footer) > maxMessageRunes && len(entries) > from {
		emit(len(entries), "")
	}
	emit(len(entries), footer)
	return pages
}
