package models

import "time"

// TaskStatus 任务状态
type TaskStatus string

// 任务状态常量，pending → completed 单向流转
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task 任务模型
// ID 由时间戳派生，删除后不复用；CompletedAt 仅在 completed 状态下非空
type Task struct {
	ID          int64      `json:"id" bson:"id"`
	Text        string     `json:"text" bson:"text"`
	Status      TaskStatus `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at"`
	MessageLink string     `json:"message_link,omitempty" bson:"message_link,omitempty"`
	MessageID   *int       `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Media       *MediaInfo `json:"media_info,omitempty" bson:"media_info,omitempty"`

	// 由其他用户通过 /addfor 指派时记录指派者
	AssignedBy int64 `json:"assigned_by,omitempty" bson:"assigned_by,omitempty"`
	// 修改前的文本，按时间顺序追加
	EditHistory []TextRevision `json:"edit_history,omitempty" bson:"edit_history,omitempty"`
}

// TextRevision 任务文本修改记录
type TextRevision struct {
	Text      string    `json:"text" bson:"text"`
	ChangedAt time.Time `json:"changed_at" bson:"changed_at"`
}

// IsCompleted 是否已完成
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// Clone 深拷贝，避免调用方修改存储内的数据
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		clone.CompletedAt = &completedAt
	}
	if t.MessageID != nil {
		messageID := *t.MessageID
		clone.MessageID = &messageID
	}
	if t.Media != nil {
		media := *t.Media
		media.Items = append([]Attachment(nil), t.Media.Items...)
		clone.Media = &media
	}
	clone.EditHistory = append([]TextRevision(nil), t.EditHistory...)
	return &clone
}

// ArchivedTask 已归档任务，只能由已完成的任务转入
type ArchivedTask struct {
	Task       `bson:",inline"`
	ArchivedAt time.Time `json:"archived_at" bson:"archived_at"`
}

// TaskStats 任务统计
type TaskStats struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate float64 // 百分比 0-100
}

// NewTask 新建任务参数
type NewTask struct {
	Text        string
	MessageLink string
	MessageID   *int
	Media       *MediaInfo
	AssignedBy  int64
}
