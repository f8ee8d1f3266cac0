package service

import (
	"context"

	"task_bot/internal/telegram/models"
)

// TaskService 任务业务逻辑接口
//
// 所有修改操作在返回前已将整个集合持久化；持久化失败时内存状态保持不变。
type TaskService interface {
	// Load 从存储加载任务与归档，读取失败时以空集合代替
	Load(ctx context.Context)

	// Add 添加任务
	Add(ctx context.Context, userID int64, task models.NewTask) (*models.Task, error)

	// Complete 标记任务完成（pending → completed，已完成时为幂等操作）
	Complete(ctx context.Context, userID, taskID int64) (*models.Task, error)

	// Delete 删除任务
	Delete(ctx context.Context, userID, taskID int64) error

	// Archive 归档已完成的任务，未完成返回 ErrTaskNotCompleted
	Archive(ctx context.Context, userID, taskID int64) (*models.ArchivedTask, error)

	// DeleteArchived 永久删除归档任务
	DeleteArchived(ctx context.Context, userID, taskID int64) error

	// EditText 修改任务文本，旧文本写入 EditHistory
	EditText(ctx context.Context, userID, taskID int64, text string) (*models.Task, error)

	// Tasks 按插入顺序返回用户任务
	Tasks(userID int64) []*models.Task

	// Task 获取单个任务
	Task(userID, taskID int64) (*models.Task, error)

	// ArchivedTasks 按归档顺序返回用户归档任务
	ArchivedTasks(userID int64) []*models.ArchivedTask

	// ArchivedTask 获取单个归档任务
	ArchivedTask(userID, taskID int64) (*models.ArchivedTask, error)

	// Stats 任务统计
	Stats(userID int64) models.TaskStats

	// Flush 立即持久化全部集合（/save）
	Flush(ctx context.Context) error
}

// HandleService 用户 @username 登记与解析
type HandleService interface {
	// Load 从存储加载对应关系
	Load(ctx context.Context)

	// Record 记录用户当前 username，未变化时不写存储
	Record(ctx context.Context, userID int64, handle string) error

	// Resolve 根据 username 查找用户 ID（忽略 @ 与大小写）
	Resolve(handle string) (int64, error)
}
