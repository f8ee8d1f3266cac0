package models

import (
	"strconv"
	"strings"
	"time"
)

// IncomingMessage 传输层归一化后的入站消息
// 所有按 API 版本区分的字段读取都在传输层完成，分拣核心只看这一种形态
type IncomingMessage struct {
	SenderID     int64
	ChatID       int64
	MessageID    int
	Text         string
	Caption      string
	Attachment   *Attachment
	Forward      *ForwardProvenance
	MediaGroupID string
}

// ForwardProvenance 转发来源信息
type ForwardProvenance struct {
	SenderName      string
	SourceChat      string // 公开来源的 username，用于生成链接
	SourceMessageID int
	Date            time.Time
}

// IsForwarded 是否为转发消息
func (m *IncomingMessage) IsForwarded() bool {
	return m.Forward != nil
}

// HasMedia 是否携带附件
func (m *IncomingMessage) HasMedia() bool {
	return m.Attachment != nil
}

// IsCommand 是否为命令消息
func (m *IncomingMessage) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Body 返回正文，没有正文时返回媒体说明文字
func (m *IncomingMessage) Body() string {
	if text := strings.TrimSpace(m.Text); text != "" {
		return text
	}
	return strings.TrimSpace(m.Caption)
}

// ExtractedRecord 从单条消息提取出的任务素材
type ExtractedRecord struct {
	Content   string     `json:"content,omitempty"`
	Link      string     `json:"link,omitempty"`
	MessageID int        `json:"message_id"`
	Media     *MediaInfo `json:"media_info,omitempty"`
}

// Extract 将入站消息转换为任务素材
// 内容依次拼接：来源/日期、正文或说明文字、媒体摘要，以 " | " 分隔
func Extract(msg *IncomingMessage) ExtractedRecord {
	var parts []string
	record := ExtractedRecord{MessageID: msg.MessageID}

	if fwd := msg.Forward; fwd != nil {
		if fwd.SenderName != "" {
			parts = append(parts, "From: "+fwd.SenderName)
		}
		if !fwd.Date.IsZero() {
			parts = append(parts, "Date: "+fwd.Date.Format("2006-01-02 15:04"))
		}
		if fwd.SourceChat != "" && fwd.SourceMessageID > 0 {
			record.Link = PublicMessageLink(fwd.SourceChat, fwd.SourceMessageID)
		}
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		parts = append(parts, "Text: "+text)
	} else if caption := strings.TrimSpace(msg.Caption); caption != "" {
		parts = append(parts, "Caption: "+caption)
	}

	if msg.Attachment != nil {
		parts = append(parts, msg.Attachment.Summary())
		record.Media = SingleMedia(*msg.Attachment)
	}

	record.Content = strings.Join(parts, " | ")
	return record
}

// PublicMessageLink 公开频道/群组的消息链接
func PublicMessageLink(username string, messageID int) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" || messageID <= 0 {
		return ""
	}
	return "https://t.me/" + username + "/" + strconv.Itoa(messageID)
}
