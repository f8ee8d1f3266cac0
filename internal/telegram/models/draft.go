package models

import "time"

// DraftKind 待确认草稿的来源
type DraftKind string

const (
	DraftKindText         DraftKind = "text"
	DraftKindMedia        DraftKind = "media"
	DraftKindMediaGroup   DraftKind = "media_group"
	DraftKindForwardBatch DraftKind = "forward_batch"
	DraftKindForward      DraftKind = "forward"
)

// Draft 等待用户确认的任务草稿
// ID 写入按钮回调数据，用于识别过期的确认按钮
type Draft struct {
	ID        string
	Kind      DraftKind
	Text      string
	Link      string
	MessageID *int
	Media     *MediaInfo
	CreatedAt time.Time

	// Sources 合并前的消息条数
	Sources int

	// MediaGroupID 仅 media_group 草稿使用，对应暂存区的 key
	MediaGroupID string
}

// ToNewTask 转换为任务创建参数
func (d *Draft) ToNewTask() NewTask {
	return NewTask{
		Text:        d.Text,
		MessageLink: d.Link,
		MessageID:   d.MessageID,
		Media:       d.Media,
	}
}
