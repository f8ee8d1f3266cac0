package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/repository"
)

type taskCollection map[string][]*models.Task

type archiveCollection map[string][]*models.ArchivedTask

// TaskServiceImpl 任务服务实现
// 内存中保存完整集合，每次修改后整集合写回存储
type TaskServiceImpl struct {
	mu       sync.Mutex
	store    repository.SnapshotStore
	clock    clock.Clock
	tasks    taskCollection
	archived archiveCollection
	lastID   map[string]int64
}

// NewTaskService 创建任务服务
func NewTaskService(store repository.SnapshotStore, c clock.Clock) *TaskServiceImpl {
	if c == nil {
		c = clock.New()
	}
	return &TaskServiceImpl{
		store:    store,
		clock:    c,
		tasks:    make(taskCollection),
		archived: make(archiveCollection),
		lastID:   make(map[string]int64),
	}
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Load 加载任务与归档集合
func (s *TaskServiceImpl) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make(taskCollection)
	if _, err := s.store.Load(ctx, repository.CollectionTasks, &tasks); err != nil {
		logger.L().Warnf("Failed to load tasks, starting with empty collection: %v", err)
		tasks = make(taskCollection)
	}

	archived := make(archiveCollection)
	if _, err := s.store.Load(ctx, repository.CollectionArchivedTasks, &archived); err != nil {
		logger.L().Warnf("Failed to load archived tasks, starting with empty collection: %v", err)
		archived = make(archiveCollection)
	}

	s.tasks = reconcileArchive(tasks, archived)
	s.archived = archived
	s.lastID = make(map[string]int64)
	for user, list := range s.tasks {
		for _, task := range list {
			s.observeID(user, task.ID)
		}
	}
	for user, list := range s.archived {
		for _, task := range list {
			s.observeID(user, task.ID)
		}
	}

	logger.L().Infof("Task store loaded: users=%d, archived_users=%d", len(s.tasks), len(s.archived))
}

// reconcileArchive 归档写入后、任务写入前中断时，同一任务会同时出现在两个集合中，以归档为准
func reconcileArchive(tasks taskCollection, archived archiveCollection) taskCollection {
	for user, list := range tasks {
		archivedIDs := make(map[int64]struct{}, len(archived[user]))
		for _, task := range archived[user] {
			archivedIDs[task.ID] = struct{}{}
		}
		if len(archivedIDs) == 0 {
			continue
		}

		kept := list[:0]
		for _, task := range list {
			if _, dup := archivedIDs[task.ID]; dup {
				logger.L().Warnf("Dropping task present in both live and archived sets: user_id=%s, task_id=%d", user, task.ID)
				continue
			}
			kept = append(kept, task)
		}
		tasks[user] = kept
	}
	return tasks
}

func (s *TaskServiceImpl) observeID(user string, id int64) {
	if id > s.lastID[user] {
		s.lastID[user] = id
	}
}

// nextID 时间戳派生的 ID，保证单调递增且不复用
func (s *TaskServiceImpl) nextID(user string) int64 {
	id := s.clock.Now().UnixMilli()
	if last := s.lastID[user]; id <= last {
		id = last + 1
	}
	return id
}

// Add 添加任务
func (s *TaskServiceImpl) Add(ctx context.Context, userID int64, input models.NewTask) (*models.Task, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	task := &models.Task{
		ID:          s.nextID(user),
		Text:        text,
		Status:      models.TaskStatusPending,
		CreatedAt:   s.clock.Now(),
		MessageLink: input.MessageLink,
		MessageID:   input.MessageID,
		Media:       input.Media,
		AssignedBy:  input.AssignedBy,
	}

	list := append(append([]*models.Task(nil), s.tasks[user]...), task)
	next := s.withTasks(user, list)
	if err := s.store.Save(ctx, repository.CollectionTasks, next); err != nil {
		logger.L().Errorf("Failed to persist new task: user_id=%d, error=%v", userID, err)
		return nil, fmt.Errorf("failed to add task: %w", err)
	}

	s.tasks = next
	s.observeID(user, task.ID)
	logger.L().Infof("Task added: user_id=%d, task_id=%d", userID, task.ID)
	return task.Clone(), nil
}

// Complete 标记任务完成
func (s *TaskServiceImpl) Complete(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	idx := indexOfTask(s.tasks[user], taskID)
	if idx < 0 {
		return nil, ErrTaskNotFound
	}

	current := s.tasks[user][idx]
	if current.IsCompleted() {
		return current.Clone(), nil
	}

	updated := current.Clone()
	now := s.clock.Now()
	updated.Status = models.TaskStatusCompleted
	updated.CompletedAt = &now

	list := replaceTask(s.tasks[user], idx, updated)
	next := s.withTasks(user, list)
	if err := s.store.Save(ctx, repository.CollectionTasks, next); err != nil {
		logger.L().Errorf("Failed to persist completed task: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.tasks = next
	logger.L().Infof("Task completed: user_id=%d, task_id=%d", userID, taskID)
	return updated.Clone(), nil
}

// Delete 删除任务
func (s *TaskServiceImpl) Delete(ctx context.Context, userID, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	idx := indexOfTask(s.tasks[user], taskID)
	if idx < 0 {
		return ErrTaskNotFound
	}

	next := s.withTasks(user, removeTask(s.tasks[user], idx))
	if err := s.store.Save(ctx, repository.CollectionTasks, next); err != nil {
		logger.L().Errorf("Failed to persist task deletion: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.tasks = next
	logger.L().Infof("Task deleted: user_id=%d, task_id=%d", userID, taskID)
	return nil
}

// Archive 归档已完成任务
// 先写归档再写任务；第二步失败时回写归档旧值，内存状态不变
func (s *TaskServiceImpl) Archive(ctx context.Context, userID, taskID int64) (*models.ArchivedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	idx := indexOfTask(s.tasks[user], taskID)
	if idx < 0 {
		return nil, ErrTaskNotFound
	}
	current := s.tasks[user][idx]
	if !current.IsCompleted() {
		return nil, ErrTaskNotCompleted
	}

	entry := &models.ArchivedTask{
		Task:       *current.Clone(),
		ArchivedAt: s.clock.Now(),
	}

	nextArchived := s.withArchived(user, append(append([]*models.ArchivedTask(nil), s.archived[user]...), entry))
	nextTasks := s.withTasks(user, removeTask(s.tasks[user], idx))

	if err := s.store.Save(ctx, repository.CollectionArchivedTasks, nextArchived); err != nil {
		logger.L().Errorf("Failed to persist archive: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return nil, fmt.Errorf("failed to archive task: %w", err)
	}
	if err := s.store.Save(ctx, repository.CollectionTasks, nextTasks); err != nil {
		logger.L().Errorf("Failed to persist task removal after archive: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		if rollbackErr := s.store.Save(ctx, repository.CollectionArchivedTasks, s.archived); rollbackErr != nil {
			logger.L().Errorf("Failed to roll back archive: user_id=%d, task_id=%d, error=%v", userID, taskID, rollbackErr)
		}
		return nil, fmt.Errorf("failed to archive task: %w", err)
	}

	s.tasks = nextTasks
	s.archived = nextArchived
	logger.L().Infof("Task archived: user_id=%d, task_id=%d", userID, taskID)

	result := *entry
	result.Task = *entry.Task.Clone()
	return &result, nil
}

// DeleteArchived 永久删除归档任务
func (s *TaskServiceImpl) DeleteArchived(ctx context.Context, userID, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	list := s.archived[user]
	idx := -1
	for i, task := range list {
		if task.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrTaskNotFound
	}

	remaining := make([]*models.ArchivedTask, 0, len(list)-1)
	remaining = append(remaining, list[:idx]...)
	remaining = append(remaining, list[idx+1:]...)

	next := s.withArchived(user, remaining)
	if err := s.store.Save(ctx, repository.CollectionArchivedTasks, next); err != nil {
		logger.L().Errorf("Failed to persist archived deletion: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return fmt.Errorf("failed to delete archived task: %w", err)
	}

	s.archived = next
	logger.L().Infof("Archived task permanently deleted: user_id=%d, task_id=%d", userID, taskID)
	return nil
}

// EditText 修改任务文本
func (s *TaskServiceImpl) EditText(ctx context.Context, userID, taskID int64, text string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := userKey(userID)
	idx := indexOfTask(s.tasks[user], taskID)
	if idx < 0 {
		return nil, ErrTaskNotFound
	}

	updated := s.tasks[user][idx].Clone()
	if updated.Text == text {
		return updated, nil
	}
	updated.EditHistory = append(updated.EditHistory, models.TextRevision{
		Text:      updated.Text,
		ChangedAt: s.clock.Now(),
	})
	updated.Text = text

	next := s.withTasks(user, replaceTask(s.tasks[user], idx, updated))
	if err := s.store.Save(ctx, repository.CollectionTasks, next); err != nil {
		logger.L().Errorf("Failed to persist task edit: user_id=%d, task_id=%d, error=%v", userID, taskID, err)
		return nil, fmt.Errorf("failed to edit task: %w", err)
	}

	s.tasks = next
	logger.L().Infof("Task text edited: user_id=%d, task_id=%d, revisions=%d", userID, taskID, len(updated.EditHistory))
	return updated.Clone(), nil
}

// Tasks 返回用户任务
func (s *TaskServiceImpl) Tasks(userID int64) []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.tasks[userKey(userID)]
	result := make([]*models.Task, 0, len(list))
	for _, task := range list {
		result = append(result, task.Clone())
	}
	return result
}

// Task 返回单个任务
func (s *TaskServiceImpl) Task(userID, taskID int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.tasks[userKey(userID)]
	idx := indexOfTask(list, taskID)
	if idx < 0 {
		return nil, ErrTaskNotFound
	}
	return list[idx].Clone(), nil
}

// ArchivedTasks 返回用户归档任务
func (s *TaskServiceImpl) ArchivedTasks(userID int64) []*models.ArchivedTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.archived[userKey(userID)]
	result := make([]*models.ArchivedTask, 0, len(list))
	for _, task := range list {
		entry := *task
		entry.Task = *task.Task.Clone()
		result = append(result, &entry)
	}
	return result
}

// ArchivedTask 返回单个归档任务
func (s *TaskServiceImpl) ArchivedTask(userID, taskID int64) (*models.ArchivedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.archived[userKey(userID)] {
		if task.ID == taskID {
			entry := *task
			entry.Task = *task.Task.Clone()
			return &entry, nil
		}
	}
	return nil, ErrTaskNotFound
}

// Stats 统计用户任务完成情况
func (s *TaskServiceImpl) Stats(userID int64) models.TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.TaskStats
	for _, task := range s.tasks[userKey(userID)] {
		stats.Total++
		if task.IsCompleted() {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats
}

// Flush 持久化全部集合
func (s *TaskServiceImpl) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, repository.CollectionTasks, s.tasks); err != nil {
		return fmt.Errorf("failed to flush tasks: %w", err)
	}
	if err := s.store.Save(ctx, repository.CollectionArchivedTasks, s.archived); err != nil {
		return fmt.Errorf("failed to flush archived tasks: %w", err)
	}
	logger.L().Info("Task store flushed")
	return nil
}

// withTasks 返回替换了 user 列表的新集合（浅拷贝），保存成功前不改动当前集合
func (s *TaskServiceImpl) withTasks(user string, list []*models.Task) taskCollection {
	next := make(taskCollection, len(s.tasks)+1)
	for k, v := range s.tasks {
		next[k] = v
	}
	next[user] = list
	return next
}

func (s *TaskServiceImpl) withArchived(user string, list []*models.ArchivedTask) archiveCollection {
	next := make(archiveCollection, len(s.archived)+1)
	for k, v := range s.archived {
		next[k] = v
	}
	next[user] = list
	return next
}

func indexOfTask(list []*models.Task, taskID int64) int {
	for i, task := range list {
		if task.ID == taskID {
			return i
		}
	}
	return -1
}

func replaceTask(list []*models.Task, idx int, task *models.Task) []*models.Task {
	next := append([]*models.Task(nil), list...)
	next[idx] = task
	return next
}

func removeTask(list []*models.Task, idx int) []*models.Task {
	next := make([]*models.Task, 0, len(list)-1)
	next = append(next, list[:idx]...)
	return append(next, list[idx+1:]...)
}
