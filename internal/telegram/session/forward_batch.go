package session

import (
	"strings"
	"time"

	"task_bot/internal/telegram/models"
)

// BatchSeparator 批量转发合并时各条内容之间的分隔
const BatchSeparator = "\n\n---\n\n"

type forwardBatch struct {
	records      []models.ExtractedRecord
	lastActivity time.Time
	seq          uint64
}

// ForwardBatches 转发消息批量聚合
//
// 同一用户在 window 内连续转发的消息合并为一个草稿；达到 max 条时立即结束批次。
// 批次结束后保留空记录，下一条转发直接作为新批次的第一条，不与上一批次的时间比较。
type ForwardBatches struct {
	window  time.Duration
	max     int
	batches map[int64]*forwardBatch
	seq     uint64
}

// NewForwardBatches 创建转发聚合器
func NewForwardBatches(window time.Duration, max int) *ForwardBatches {
	if max < 1 {
		max = 1
	}
	return &ForwardBatches{
		window:  window,
		max:     max,
		batches: make(map[int64]*forwardBatch),
	}
}

// Window 批次空闲窗口
func (f *ForwardBatches) Window() time.Duration {
	return f.window
}

// Add 处理一条转发
// flushed 为本次触发结束的批次（超时、或达到上限），size 为处理后当前批次的条数
func (f *ForwardBatches) Add(userID int64, rec models.ExtractedRecord, now time.Time) (flushed *models.Draft, size int) {
	batch, ok := f.batches[userID]
	if !ok {
		batch = &forwardBatch{}
		f.batches[userID] = batch
	}

	if len(batch.records) > 0 {
		elapsed := now.Sub(batch.lastActivity)
		if elapsed >= f.window || len(batch.records) >= f.max {
			flushed = buildBatchDraft(batch.records, now)
			batch.records = nil
		}
	}

	batch.records = append(batch.records, rec)
	batch.lastActivity = now
	f.seq++
	batch.seq = f.seq

	// 达到上限时不等下一条消息，直接结束
	if flushed == nil && len(batch.records) >= f.max {
		flushed = buildBatchDraft(batch.records, now)
		batch.records = nil
	}
	return flushed, len(batch.records)
}

// Size 当前批次条数
func (f *ForwardBatches) Size(userID int64) int {
	if batch, ok := f.batches[userID]; ok {
		return len(batch.records)
	}
	return 0
}

// Seq 用户批次最近一次变化的序号，在所有用户与批次之间唯一；没有批次时为 0
// 空闲定时器据此判断自己是否已过期
func (f *ForwardBatches) Seq(userID int64) uint64 {
	if batch, ok := f.batches[userID]; ok {
		return batch.seq
	}
	return 0
}

// Flush 结束当前批次；批次为空时返回 nil
func (f *ForwardBatches) Flush(userID int64, now time.Time) *models.Draft {
	batch, ok := f.batches[userID]
	if !ok || len(batch.records) == 0 {
		return nil
	}
	draft := buildBatchDraft(batch.records, now)
	batch.records = nil
	return draft
}

// Discard 丢弃用户的批次记录
func (f *ForwardBatches) Discard(userID int64) bool {
	batch, ok := f.batches[userID]
	delete(f.batches, userID)
	return ok && len(batch.records) > 0
}

// buildBatchDraft 合并批次：内容按顺序拼接，保留第一个消息 ID 与第一个链接，媒体合并为 multiple
func buildBatchDraft(records []models.ExtractedRecord, now time.Time) *models.Draft {
	draft := &models.Draft{
		Kind:      models.DraftKindForwardBatch,
		CreatedAt: now,
		Sources:   len(records),
	}
	if len(records) == 1 {
		draft.Kind = models.DraftKindForward
	}

	var contents []string
	var media []models.Attachment
	for i, rec := range records {
		if rec.Content != "" {
			contents = append(contents, rec.Content)
		}
		if i == 0 && rec.MessageID > 0 {
			messageID := rec.MessageID
			draft.MessageID = &messageID
		}
		if draft.Link == "" && rec.Link != "" {
			draft.Link = rec.Link
		}
		media = append(media, rec.Media.Attachments()...)
	}

	draft.Text = strings.Join(contents, BatchSeparator)
	draft.Media = models.MultipleMedia(media)
	return draft
}
