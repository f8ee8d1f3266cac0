package triage

import (
	"context"

	"task_bot/internal/telegram/models"
)

// Button 内联按钮
type Button struct {
	Text string
	Data string
}

// Keyboard 内联键盘，按行排列
type Keyboard [][]Button

// Ref 消息位置
type Ref struct {
	ChatID    int64
	MessageID int
}

// Notifier 出站消息接口，由传输层实现
//
// EditText 遇到"内容未变化"一类错误时应返回 nil
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard Keyboard) (int, error)
	SendMedia(ctx context.Context, chatID int64, media models.Attachment, caption string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard Keyboard) error
}

// 回调数据前缀
const (
	CallbackDraftAccept = "draft:accept:"
	CallbackDraftCancel = "draft:cancel:"
	CallbackBatchFinish = "batch:finish"
	CallbackGroupDesc   = "group:desc:"
)
