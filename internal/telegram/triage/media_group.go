package triage

import (
	"context"
	"fmt"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/session"
)

// bufferMediaGroupLocked 缓冲媒体组条目
// 只在第一条到达时安排结算，截止时间不随后续条目顺延
func (r *Router) bufferMediaGroupLocked(msg *models.IncomingMessage) {
	groupID := msg.MediaGroupID
	first := r.groups.Add(groupID, msg.SenderID, msg.ChatID, msg.MessageID, *msg.Attachment, msg.Body(), r.clock.Now())
	if !first {
		logger.L().Debugf("Added item to media group: media_group_id=%s, user_id=%d", groupID, msg.SenderID)
		return
	}

	r.timers.Schedule(mediaGroupTimerKey(groupID), r.cfg.MediaGroupDelay, func() {
		r.finalizeMediaGroup(groupID)
	})
	logger.L().Debugf("Created media group buffer: media_group_id=%s, user_id=%d", groupID, msg.SenderID)
}

// finalizeMediaGroup 媒体组结算：并入附件会话，或暂存后请求确认
func (r *Router) finalizeMediaGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	buffer := r.groups.Take(groupID)
	if buffer == nil || len(buffer.Items) == 0 {
		return
	}
	logger.L().Infof("Media group collection completed: media_group_id=%s, user_id=%d, items=%d", groupID, buffer.OwnerID, len(buffer.Items))

	if r.attachments.Active(buffer.OwnerID) {
		total, _ := r.attachments.Append(buffer.OwnerID, buffer.Items, r.clock.Now())
		text := fmt.Sprintf("📎 %d attachments added (%d collected). Send more or use /done <task text>.", len(buffer.Items), total)
		if err := r.send(ctx, buffer.ChatID, text, nil); err != nil {
			logger.L().Warnf("Failed to acknowledge media group: media_group_id=%s, error=%v", groupID, err)
		}
		return
	}

	media := models.MultipleMedia(buffer.Items)
	now := r.clock.Now()
	r.stash.Put(groupID, &session.StashedGroup{
		OwnerID:   buffer.OwnerID,
		ChatID:    buffer.ChatID,
		MessageID: buffer.AnchorMessageID,
		Media:     media,
		Caption:   buffer.Caption,
		CreatedAt: now,
	})

	anchor := buffer.AnchorMessageID
	draft := &models.Draft{
		Kind:         models.DraftKindMediaGroup,
		Text:         buffer.Caption,
		MessageID:    &anchor,
		Media:        media,
		CreatedAt:    now,
		Sources:      len(buffer.Items),
		MediaGroupID: groupID,
	}
	if err := r.promptLocked(ctx, buffer.OwnerID, buffer.ChatID, draft); err != nil {
		logger.L().Errorf("Failed to prompt for media group: media_group_id=%s, error=%v", groupID, err)
	}
}

// AwaitMediaGroupText 等待用户为暂存的媒体组发送描述
func (r *Router) AwaitMediaGroupText(ctx context.Context, userID int64, origin Ref, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.stash.Get(groupID)
	if !ok || entry.OwnerID != userID {
		return r.reply(ctx, origin, "🤷 Nothing to do: this media group has expired.")
	}

	if err := r.reply(ctx, origin, fmt.Sprintf("📝 Send a description for this media group (%s).\n\nUse /cancel to discard it.", entry.Media.Summary())); err != nil {
		return err
	}
	r.awaitingGroup[userID] = groupID
	logger.L().Infof("Awaiting media group description: user_id=%d, media_group_id=%s", userID, groupID)
	return nil
}

// AcceptMediaGroup 以给定描述将暂存的媒体组创建为任务
func (r *Router) AcceptMediaGroup(ctx context.Context, userID, chatID int64, groupID, text string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acceptMediaGroupLocked(ctx, userID, chatID, groupID, text)
}

func (r *Router) acceptMediaGroupLocked(ctx context.Context, userID, chatID int64, groupID, text string) (*models.Task, error) {
	entry, ok := r.stash.Get(groupID)
	if !ok || entry.OwnerID != userID {
		delete(r.awaitingGroup, userID)
		return nil, r.send(ctx, chatID, "❌ Media group expired. Please send it again.", nil)
	}

	if text == "" {
		text = entry.Caption
	}
	if text == "" {
		text = entry.Media.Summary()
	}

	messageID := entry.MessageID
	task, err := r.tasks.Add(ctx, userID, models.NewTask{
		Text:      text,
		MessageID: &messageID,
		Media:     entry.Media,
	})
	if err != nil {
		logger.L().Errorf("Failed to add media group task: user_id=%d, media_group_id=%s, error=%v", userID, groupID, err)
		return nil, r.send(ctx, chatID, "❌ Failed to save task, please try again.", nil)
	}

	r.stash.Take(groupID)
	delete(r.awaitingGroup, userID)
	if prompt := r.prompts.Peek(userID); prompt != nil && prompt.Draft.MediaGroupID == groupID {
		r.prompts.Take(userID, prompt.Draft.ID)
		r.retirePromptLocked(ctx, prompt, "📝 Description received.")
	}

	logger.L().Infof("Media group task added: user_id=%d, media_group_id=%s, task_id=%d", userID, groupID, task.ID)
	return task, r.send(ctx, chatID, fmt.Sprintf("%s\n%s", taskAddedText(task), entry.Media.Summary()), nil)
}

// applyMediaGroupText 等待描述状态下的下一条消息作为媒体组任务的描述
func (r *Router) applyMediaGroupText(ctx context.Context, msg *models.IncomingMessage) error {
	text := msg.Body()
	if text == "" {
		return r.send(ctx, msg.ChatID, "Please send the description as a text message, or /cancel.", nil)
	}
	_, err := r.acceptMediaGroupLocked(ctx, msg.SenderID, msg.ChatID, r.awaitingGroup[msg.SenderID], text)
	return err
}
