package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/logger"
)

// HandlerTask Handler 任务
type HandlerTask struct {
	Ctx         context.Context
	BotInstance *bot.Bot
	Update      *botModels.Update
	Handler     bot.HandlerFunc
	// Key 分片键（用户 ID），同一 Key 的任务按提交顺序执行
	Key int64
}

// WorkerPoolStats 工作池状态
type WorkerPoolStats struct {
	Workers       int
	QueueLength   int
	QueueCapacity int
}

// WorkerPool Handler 工作池
// 每个 worker 独占一个队列，任务按 Key 取模分配
type WorkerPool struct {
	queues  []chan HandlerTask
	wg      sync.WaitGroup
	workers int
	mu      sync.RWMutex
	closed  bool
}

// NewWorkerPool 创建工作池
// workers: worker 协程数量
// queueSize: 每个 worker 的任务队列大小
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	pool := &WorkerPool{
		queues:  make([]chan HandlerTask, workers),
		workers: workers,
	}

	for i := 0; i < workers; i++ {
		pool.queues[i] = make(chan HandlerTask, queueSize)
		pool.wg.Add(1)
		go pool.worker(i, pool.queues[i])
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

// worker 工作协程
func (p *WorkerPool) worker(id int, queue <-chan HandlerTask) {
	defer p.wg.Done()

	logger.L().Debugf("Worker %d started", id)

	for task := range queue {
		p.run(id, task)
	}

	logger.L().Debugf("Worker %d stopped", id)
}

// run 执行 handler，带 panic recovery
func (p *WorkerPool) run(id int, task HandlerTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Errorf("Worker %d: handler panic recovered: %v", id, r)
			if task.BotInstance == nil || task.Update == nil {
				return
			}
			if chatID := updateChatID(task.Update); chatID != 0 {
				_, _ = task.BotInstance.SendMessage(task.Ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   "❌ Internal error, please try again later.",
				})
			}
		}
	}()

	task.Handler(task.Ctx, task.BotInstance, task.Update)
}

func (p *WorkerPool) shard(key int64) int {
	if key < 0 {
		key = -key
	}
	return int(key % int64(p.workers))
}

// Submit 提交任务到工作池，队列已满或已关闭时丢弃并返回 false
func (p *WorkerPool) Submit(task HandlerTask) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		logger.L().Warnf("Worker pool is shut down, task dropped: key=%d", task.Key)
		return false
	}

	select {
	case p.queues[p.shard(task.Key)] <- task:
		return true
	default:
		logger.L().Warnf("Worker pool queue is full, task dropped: key=%d", task.Key)
		return false
	}
}

// Stats 工作池状态
func (p *WorkerPool) Stats() WorkerPoolStats {
	stats := WorkerPoolStats{Workers: p.workers}
	for _, queue := range p.queues {
		stats.QueueLength += len(queue)
		stats.QueueCapacity += cap(queue)
	}
	return stats
}

// Shutdown 优雅关闭工作池
// 等待所有正在执行的任务完成
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	logger.L().Info("Shutting down worker pool...")
	p.wg.Wait()
	logger.L().Info("Worker pool shut down successfully")
}

// updateChatID 返回 update 所在会话
func updateChatID(update *botModels.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	default:
		return 0
	}
}

// updateUserID 返回 update 的发送者
func updateUserID(update *botModels.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	default:
		return 0
	}
}
