package triage

import (
	"context"
	"fmt"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
)

// handleForward 转发消息并入批次
func (r *Router) handleForward(ctx context.Context, msg *models.IncomingMessage) error {
	rec := models.Extract(msg)
	if rec.Content == "" && rec.Media == nil {
		return r.send(ctx, msg.ChatID, "❌ Could not extract task content from forwarded message.", nil)
	}

	userID := msg.SenderID
	r.batchChats[userID] = msg.ChatID
	flushed, size := r.forwards.Add(userID, rec, r.clock.Now())

	if flushed != nil {
		logger.L().Infof("Forward batch flushed: user_id=%d, records=%d", userID, flushed.Sources)
		r.clearBatchAckLocked(ctx, userID)
		if err := r.promptLocked(ctx, userID, msg.ChatID, flushed); err != nil {
			return err
		}
	}

	if size == 0 {
		r.timers.Cancel(forwardTimerKey(userID))
		return nil
	}

	seq := r.forwards.Seq(userID)
	r.timers.Reset(forwardTimerKey(userID), r.forwards.Window(), func() {
		r.flushIdleBatch(userID, seq)
	})
	logger.L().Debugf("Forward added to batch: user_id=%d, size=%d", userID, size)
	return r.ackBatchLocked(ctx, userID, msg.ChatID, size)
}

// ackBatchLocked 批次进度提示，同一批次只保留一条消息并原地更新
func (r *Router) ackBatchLocked(ctx context.Context, userID, chatID int64, size int) error {
	text := fmt.Sprintf("📨 Added to batch (%d message(s)).\nForward more within %s, or tap Finish.", size, r.forwards.Window())
	keyboard := Keyboard{{{Text: "✅ Finish batch", Data: CallbackBatchFinish}}}

	if ack, ok := r.batchAcks[userID]; ok && r.notifier != nil && ack.ChatID == chatID && ack.MessageID != 0 {
		if err := r.notifier.EditText(ctx, ack.ChatID, ack.MessageID, text, keyboard); err == nil {
			return nil
		}
	}

	messageID, err := r.sendWithID(ctx, chatID, text, keyboard)
	if err != nil {
		return err
	}
	r.batchAcks[userID] = Ref{ChatID: chatID, MessageID: messageID}
	return nil
}

// clearBatchAckLocked 批次结束后移除进度提示的按钮
func (r *Router) clearBatchAckLocked(ctx context.Context, userID int64) {
	ack, ok := r.batchAcks[userID]
	if !ok {
		return
	}
	delete(r.batchAcks, userID)
	if r.notifier == nil || ack.MessageID == 0 {
		return
	}
	if err := r.notifier.EditText(ctx, ack.ChatID, ack.MessageID, "📨 Batch closed.", nil); err != nil {
		logger.L().Debugf("Failed to close batch acknowledgment: user_id=%d, error=%v", userID, err)
	}
}

// flushIdleBatch 批次空闲超时后结束批次
// 定时器触发与新转发同时发生时，回调拿到锁前批次可能已经变化，seq 不一致则跳过
func (r *Router) flushIdleBatch(userID int64, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current := r.forwards.Seq(userID); current != seq {
		logger.L().Debugf("Stale forward batch timer skipped: user_id=%d, armed_seq=%d, current_seq=%d", userID, seq, current)
		return
	}
	ctx := context.Background()
	draft := r.forwards.Flush(userID, r.clock.Now())
	if draft == nil {
		return
	}
	logger.L().Infof("Forward batch idle timeout: user_id=%d, records=%d", userID, draft.Sources)
	r.clearBatchAckLocked(ctx, userID)
	if err := r.promptLocked(ctx, userID, r.batchChats[userID], draft); err != nil {
		logger.L().Errorf("Failed to prompt for idle forward batch: user_id=%d, error=%v", userID, err)
	}
}

// FinishBatch 立即结束当前转发批次
func (r *Router) FinishBatch(ctx context.Context, userID int64, origin Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timers.Cancel(forwardTimerKey(userID))
	draft := r.forwards.Flush(userID, r.clock.Now())
	if draft == nil {
		return r.reply(ctx, origin, "🤷 Nothing to do: no forward batch in progress.")
	}

	logger.L().Infof("Forward batch finished by user: user_id=%d, records=%d", userID, draft.Sources)
	chatID := origin.ChatID
	if chatID == 0 {
		chatID = r.batchChats[userID]
	}
	r.clearBatchAckLocked(ctx, userID)
	return r.promptLocked(ctx, userID, chatID, draft)
}
