package triage

import (
	"context"
	"fmt"
	"strings"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/session"
)

const (
	previewLimit   = 100
	confirmedLimit = 50
)

// promptLocked 发送确认提示并占用用户的草稿槽，旧草稿被覆盖
func (r *Router) promptLocked(ctx context.Context, userID, chatID int64, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = r.newID()
	}

	prompt := &session.Prompt{Draft: draft, ChatID: chatID}
	if previous := r.prompts.Put(userID, prompt); previous != nil {
		r.releaseDraftLocked(userID, previous.Draft)
		r.retirePromptLocked(ctx, previous, "⌛ Replaced by a newer draft.")
		logger.L().Debugf("Draft replaced: user_id=%d, old_draft_id=%s, new_draft_id=%s", userID, previous.Draft.ID, draft.ID)
	}

	messageID, err := r.sendWithID(ctx, chatID, renderPrompt(draft), promptKeyboard(draft))
	if err != nil {
		return err
	}
	r.prompts.SetMessage(userID, draft.ID, chatID, messageID)
	logger.L().Infof("Confirmation prompt raised: user_id=%d, draft_id=%s, kind=%s", userID, draft.ID, draft.Kind)
	return nil
}

// retirePromptLocked 将已失效提示的按钮移除
func (r *Router) retirePromptLocked(ctx context.Context, prompt *session.Prompt, text string) {
	if r.notifier == nil || prompt.MessageID == 0 {
		return
	}
	if err := r.notifier.EditText(ctx, prompt.ChatID, prompt.MessageID, text, nil); err != nil {
		logger.L().Warnf("Failed to retire prompt: chat_id=%d, message_id=%d, error=%v", prompt.ChatID, prompt.MessageID, err)
	}
}

func renderPrompt(draft *models.Draft) string {
	var b strings.Builder
	switch draft.Kind {
	case models.DraftKindForward, models.DraftKindForwardBatch:
		b.WriteString("📨 Forwarded Message Detected\n\n")
		if draft.Kind == models.DraftKindForwardBatch {
			fmt.Fprintf(&b, "Messages: %d\n", draft.Sources)
		}
		if draft.Media != nil {
			b.WriteString(draft.Media.Summary() + "\n")
		}
		b.WriteString("Content Preview:\n" + truncate(draft.Text, previewLimit))
		if draft.Link != "" {
			b.WriteString("\n\n🔗 Original Message: " + draft.Link)
		}
		b.WriteString("\n\nDo you want to add this as a task?")
	case models.DraftKindMedia:
		b.WriteString("📎 Media Message Detected\n\n")
		b.WriteString("Content: " + truncate(draft.Text, previewLimit))
		b.WriteString("\n\nDo you want to add this as a task?")
	case models.DraftKindMediaGroup:
		b.WriteString("🖼 Media Group Detected\n\n")
		b.WriteString(draft.Media.Summary())
		if draft.Text != "" {
			b.WriteString("\nCaption: " + truncate(draft.Text, previewLimit))
		}
		b.WriteString("\n\nDo you want to add this as a task?")
	default:
		b.WriteString("Do you want to add this as a task?\n\n")
		b.WriteString("\"" + truncate(draft.Text, previewLimit) + "\"")
	}
	return b.String()
}

func promptKeyboard(draft *models.Draft) Keyboard {
	row := []Button{
		{Text: "✅ Add as Task", Data: CallbackDraftAccept + draft.ID},
		{Text: "❌ Cancel", Data: CallbackDraftCancel + draft.ID},
	}
	if draft.Kind == models.DraftKindMediaGroup {
		return Keyboard{
			row,
			{{Text: "📝 Add description", Data: CallbackGroupDesc + draft.MediaGroupID}},
		}
	}
	return Keyboard{row}
}

func taskAddedText(task *models.Task) string {
	return fmt.Sprintf("✅ Task added successfully!\nTask #%d: %s", task.ID, truncate(task.Text, confirmedLimit))
}

// truncate 按字符截断，超出时追加省略号
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
