package session

import (
	"time"

	"task_bot/internal/telegram/models"
)

// MediaGroupBuffer 媒体组缓冲区
type MediaGroupBuffer struct {
	GroupID         string
	OwnerID         int64
	ChatID          int64
	AnchorMessageID int
	Items           []models.Attachment
	Caption         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MediaGroups 媒体组收集器
// 只负责缓冲，定时结算由调用方通过 clock.KeyedTimers 安排
type MediaGroups struct {
	buffers map[string]*MediaGroupBuffer
}

// NewMediaGroups 创建媒体组收集器
func NewMediaGroups() *MediaGroups {
	return &MediaGroups{buffers: make(map[string]*MediaGroupBuffer)}
}

// Add 添加媒体到缓冲区，first 表示是否为该组的第一条
func (m *MediaGroups) Add(groupID string, ownerID, chatID int64, anchorMessageID int, item models.Attachment, caption string, now time.Time) (first bool) {
	buffer, exists := m.buffers[groupID]
	if !exists {
		buffer = &MediaGroupBuffer{
			GroupID:         groupID,
			OwnerID:         ownerID,
			ChatID:          chatID,
			AnchorMessageID: anchorMessageID,
			CreatedAt:       now,
		}
		m.buffers[groupID] = buffer
	}

	buffer.Items = append(buffer.Items, item)
	if buffer.Caption == "" && caption != "" {
		buffer.Caption = caption
	}
	buffer.UpdatedAt = now
	return !exists
}

// Take 取出并删除缓冲区
func (m *MediaGroups) Take(groupID string) *MediaGroupBuffer {
	buffer, exists := m.buffers[groupID]
	if !exists {
		return nil
	}
	delete(m.buffers, groupID)
	return buffer
}

// Len 缓冲区数量
func (m *MediaGroups) Len() int {
	return len(m.buffers)
}

// Sweep 清理超过 ttl 未更新的缓冲区
func (m *MediaGroups) Sweep(now time.Time, ttl time.Duration) []string {
	var evicted []string
	for groupID, buffer := range m.buffers {
		if now.Sub(buffer.UpdatedAt) > ttl {
			delete(m.buffers, groupID)
			evicted = append(evicted, groupID)
		}
	}
	return evicted
}
