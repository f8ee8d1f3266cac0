package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/triage"
)

// notifier 通过 Bot API 发送分拣结果，所有请求经过 throttle
type notifier struct {
	bot      *bot.Bot
	throttle *sendThrottle
}

func newNotifier(b *bot.Bot, throttle *sendThrottle) *notifier {
	return &notifier{bot: b, throttle: throttle}
}

// sendThrottle 出站请求的令牌桶
// 按下一个令牌的理论到达时间计算等待，不需要补充令牌的后台协程
type sendThrottle struct {
	mu    sync.Mutex
	clock clock.Clock
	every time.Duration // 每个令牌的间隔
	slack time.Duration // 突发额度，(burst-1) 个令牌
	next  time.Time
}

// newSendThrottle 每秒 ratePerSecond 个请求，最多连续突发 burst 个；参数小于 1 时按 1 处理
func newSendThrottle(ratePerSecond, burst int, c clock.Clock) *sendThrottle {
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	if c == nil {
		c = clock.New()
	}
	every := time.Second / time.Duration(ratePerSecond)
	return &sendThrottle{
		clock: c,
		every: every,
		slack: time.Duration(burst-1) * every,
	}
}

// reserve 占用一个令牌，返回需要等待的时长
func (t *sendThrottle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.next.Before(now) {
		t.next = now
	}
	delay := t.next.Sub(now) - t.slack
	t.next = t.next.Add(t.every)
	if delay < 0 {
		return 0
	}
	return delay
}

// Wait 阻塞到令牌可用或 ctx 取消
func (t *sendThrottle) Wait(ctx context.Context) error {
	delay := t.reserve()
	if delay == 0 {
		return ctx.Err()
	}

	ready := make(chan struct{})
	timer := t.clock.AfterFunc(delay, func() { close(ready) })
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-ready:
		return nil
	}
}

// SendText 发送纯文本消息
func (n *notifier) SendText(ctx context.Context, chatID int64, text string, keyboard triage.Keyboard) (int, error) {
	if err := n.wait(ctx); err != nil {
		return 0, err
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   clipPlain(text),
		LinkPreviewOptions: &botModels.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	}
	if markup := toInlineKeyboard(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	msg, err := n.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// EditText 编辑消息文本；内容未变化时视为成功
func (n *notifier) EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard triage.Keyboard) error {
	if err := n.wait(ctx); err != nil {
		return err
	}

	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      clipPlain(text),
		LinkPreviewOptions: &botModels.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	}
	if markup := toInlineKeyboard(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := n.bot.EditMessageText(ctx, params); err != nil {
		if isNotModified(err) {
			logger.L().Debugf("Edit skipped, message not modified: chat_id=%d, message_id=%d", chatID, messageID)
			return nil
		}
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// SendMedia 按附件类型重新发送文件
func (n *notifier) SendMedia(ctx context.Context, chatID int64, media models.Attachment, caption string) error {
	if err := n.wait(ctx); err != nil {
		return err
	}

	var err error
	file := &botModels.InputFileString{Data: media.FileID}
	switch media.Kind {
	case models.KindPhoto:
		_, err = n.bot.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: chatID, Photo: file, Caption: caption})
	case models.KindDocument:
		_, err = n.bot.SendDocument(ctx, &bot.SendDocumentParams{ChatID: chatID, Document: file, Caption: caption})
	case models.KindVideo:
		_, err = n.bot.SendVideo(ctx, &bot.SendVideoParams{ChatID: chatID, Video: file, Caption: caption})
	case models.KindAudio:
		_, err = n.bot.SendAudio(ctx, &bot.SendAudioParams{ChatID: chatID, Audio: file, Caption: caption})
	case models.KindVoice:
		_, err = n.bot.SendVoice(ctx, &bot.SendVoiceParams{ChatID: chatID, Voice: file, Caption: caption})
	case models.KindVideoNote:
		_, err = n.bot.SendVideoNote(ctx, &bot.SendVideoNoteParams{ChatID: chatID, VideoNote: file})
	case models.KindSticker:
		_, err = n.bot.SendSticker(ctx, &bot.SendStickerParams{ChatID: chatID, Sticker: file})
	case models.KindLocation:
		_, err = n.bot.SendLocation(ctx, &bot.SendLocationParams{ChatID: chatID, Latitude: media.Latitude, Longitude: media.Longitude})
	case models.KindContact:
		_, err = n.bot.SendContact(ctx, &bot.SendContactParams{
			ChatID:      chatID,
			PhoneNumber: media.PhoneNumber,
			FirstName:   media.FirstName,
			LastName:    media.LastName,
		})
	default:
		// 投票等无法按文件重发的类型只发送摘要
		_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: strings.TrimSpace(media.Summary() + "\n" + caption)})
	}
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", media.Kind, err)
	}
	return nil
}

func (n *notifier) wait(ctx context.Context) error {
	if n == nil || n.throttle == nil {
		return nil
	}
	if err := n.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle wait: %w", err)
	}
	return nil
}

// clipPlain 截断纯文本消息；只用于不带 parse mode 的消息
func clipPlain(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageRunes {
		return text
	}
	return string(runes[:maxMessageRunes]) + "…"
}

// toInlineKeyboard 转换为 Telegram 内联键盘；空键盘返回 nil
func toInlineKeyboard(keyboard triage.Keyboard) *botModels.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]botModels.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]botModels.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, botModels.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &botModels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// isNotModified Telegram 对内容未变化的编辑返回 400
func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
