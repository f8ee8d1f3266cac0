package triage

import "task_bot/internal/logger"

// SweepAttachments 清理空闲超时的附件收集会话
func (r *Router) SweepAttachments() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.attachments.Sweep(r.clock.Now(), r.cfg.AttachmentTTL)
	for _, userID := range evicted {
		logger.L().Infof("Attachment session expired: user_id=%d", userID)
	}
	return len(evicted)
}

// SweepMediaGroups 清理过期的媒体组缓冲与暂存
func (r *Router) SweepMediaGroups() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	buffers := r.groups.Sweep(now, r.cfg.MediaGroupTTL)
	for _, groupID := range buffers {
		r.timers.Cancel(mediaGroupTimerKey(groupID))
		logger.L().Infof("Stale media group discarded: media_group_id=%s", groupID)
	}

	stashed := r.stash.Sweep(now, r.cfg.MediaGroupTTL)
	if len(stashed) > 0 {
		expired := make(map[string]struct{}, len(stashed))
		for _, groupID := range stashed {
			expired[groupID] = struct{}{}
			logger.L().Infof("Stashed media group expired: media_group_id=%s", groupID)
		}
		for userID, groupID := range r.awaitingGroup {
			if _, ok := expired[groupID]; ok {
				delete(r.awaitingGroup, userID)
			}
		}
	}
	return len(buffers) + len(stashed)
}
