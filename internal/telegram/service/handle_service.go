package service

import (
	"context"
	"fmt"
	"sync"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/repository"
)

// HandleServiceImpl 用户 username 服务实现
type HandleServiceImpl struct {
	mu      sync.Mutex
	store   repository.SnapshotStore
	clock   clock.Clock
	handles map[string]models.UserHandle
}

// NewHandleService 创建 username 服务
func NewHandleService(store repository.SnapshotStore, c clock.Clock) *HandleServiceImpl {
	if c == nil {
		c = clock.New()
	}
	return &HandleServiceImpl{
		store:   store,
		clock:   c,
		handles: make(map[string]models.UserHandle),
	}
}

// Load 加载 username 对应关系
func (s *HandleServiceImpl) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make(map[string]models.UserHandle)
	if _, err := s.store.Load(ctx, repository.CollectionUserHandles, &handles); err != nil {
		logger.L().Warnf("Failed to load user handles, starting with empty collection: %v", err)
		handles = make(map[string]models.UserHandle)
	}
	s.handles = handles
}

// Record 记录用户 username
func (s *HandleServiceImpl) Record(ctx context.Context, userID int64, handle string) error {
	if userID == 0 {
		return ErrInvalidUser
	}
	normalized := models.NormalizeHandle(handle)
	if normalized == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(userID)
	if current, ok := s.handles[key]; ok && current.Handle == normalized {
		return nil
	}

	next := make(map[string]models.UserHandle, len(s.handles)+1)
	for k, v := range s.handles {
		// 同一 username 只归属最新登记的用户
		if v.Handle == normalized {
			continue
		}
		next[k] = v
	}
	next[key] = models.UserHandle{
		UserID:    userID,
		Handle:    normalized,
		UpdatedAt: s.clock.Now(),
	}

	if err := s.store.Save(ctx, repository.CollectionUserHandles, next); err != nil {
		logger.L().Warnf("Failed to persist user handle: user_id=%d, handle=%s, error=%v", userID, normalized, err)
		return fmt.Errorf("failed to record user handle: %w", err)
	}

	s.handles = next
	logger.L().Debugf("User handle recorded: user_id=%d, handle=%s", userID, normalized)
	return nil
}

// Resolve 根据 username 查找用户 ID
func (s *HandleServiceImpl) Resolve(handle string) (int64, error) {
	normalized := models.NormalizeHandle(handle)
	if normalized == "" {
		return 0, ErrHandleNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.handles {
		if entry.Handle == normalized {
			return entry.UserID, nil
		}
	}
	return 0, ErrHandleNotFound
}
