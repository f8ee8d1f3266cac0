package session

import (
	"time"

	"task_bot/internal/telegram/models"
)

// StashedGroup 已结算、等待用户确认的媒体组
type StashedGroup struct {
	OwnerID   int64
	ChatID    int64
	MessageID int
	Media     *models.MediaInfo
	Caption   string
	CreatedAt time.Time
}

// Stash 媒体组暂存区，按媒体组 ID 索引
type Stash struct {
	entries map[string]*StashedGroup
}

// NewStash 创建暂存区
func NewStash() *Stash {
	return &Stash{entries: make(map[string]*StashedGroup)}
}

// Put 暂存
func (s *Stash) Put(groupID string, entry *StashedGroup) {
	s.entries[groupID] = entry
}

// Get 读取但不删除
func (s *Stash) Get(groupID string) (*StashedGroup, bool) {
	entry, ok := s.entries[groupID]
	return entry, ok
}

// Take 读取并删除
func (s *Stash) Take(groupID string) (*StashedGroup, bool) {
	entry, ok := s.entries[groupID]
	if ok {
		delete(s.entries, groupID)
	}
	return entry, ok
}

// Len 暂存数量
func (s *Stash) Len() int {
	return len(s.entries)
}

// Sweep 清理超过 ttl 的暂存
func (s *Stash) Sweep(now time.Time, ttl time.Duration) []string {
	var evicted []string
	for groupID, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > ttl {
			delete(s.entries, groupID)
			evicted = append(evicted, groupID)
		}
	}
	return evicted
}
