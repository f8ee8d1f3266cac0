package session

import (
	"time"

	"task_bot/internal/telegram/models"
)

// attachmentSession 用户主动开启的附件收集会话
type attachmentSession struct {
	items     []models.Attachment
	startedAt time.Time
	touchedAt time.Time
}

// Attachments 附件收集会话管理器
// 非并发安全，由 triage.Router 在自身锁内调用
type Attachments struct {
	sessions map[int64]*attachmentSession
}

// NewAttachments 创建附件会话管理器
func NewAttachments() *Attachments {
	return &Attachments{sessions: make(map[int64]*attachmentSession)}
}

// Start 开启会话，已有会话时直接覆盖
func (a *Attachments) Start(userID int64, now time.Time) {
	a.sessions[userID] = &attachmentSession{
		startedAt: now,
		touchedAt: now,
	}
}

// Active 用户是否有进行中的会话
func (a *Attachments) Active(userID int64) bool {
	_, ok := a.sessions[userID]
	return ok
}

// Count 已收集的附件数量
func (a *Attachments) Count(userID int64) int {
	if s, ok := a.sessions[userID]; ok {
		return len(s.items)
	}
	return 0
}

// Append 追加附件并刷新过期时间；没有会话时返回 false
func (a *Attachments) Append(userID int64, items []models.Attachment, now time.Time) (int, bool) {
	s, ok := a.sessions[userID]
	if !ok {
		return 0, false
	}
	s.items = append(s.items, items...)
	s.touchedAt = now
	return len(s.items), true
}

// Consume 取出全部附件并结束会话
// 零个返回 nil，一个返回该附件本身，多个返回 multiple 包装
func (a *Attachments) Consume(userID int64) *models.MediaInfo {
	s, ok := a.sessions[userID]
	delete(a.sessions, userID)
	if !ok {
		return nil
	}
	switch len(s.items) {
	case 0:
		return nil
	case 1:
		return models.SingleMedia(s.items[0])
	default:
		return models.MultipleMedia(s.items)
	}
}

// Discard 结束会话并丢弃附件
func (a *Attachments) Discard(userID int64) bool {
	_, ok := a.sessions[userID]
	delete(a.sessions, userID)
	return ok
}

// Sweep 清理超过 ttl 未更新的会话，返回被清理的用户
func (a *Attachments) Sweep(now time.Time, ttl time.Duration) []int64 {
	var evicted []int64
	for userID, s := range a.sessions {
		if now.Sub(s.touchedAt) > ttl {
			delete(a.sessions, userID)
			evicted = append(evicted, userID)
		}
	}
	return evicted
}
