package models

import (
	"fmt"
	"strings"
)

// AttachmentKind 附件类型
type AttachmentKind string

// 附件类型常量
const (
	KindPhoto     AttachmentKind = "photo"
	KindDocument  AttachmentKind = "document"
	KindVideo     AttachmentKind = "video"
	KindAudio     AttachmentKind = "audio"
	KindVoice     AttachmentKind = "voice"
	KindVideoNote AttachmentKind = "video_note"
	KindSticker   AttachmentKind = "sticker"
	KindLocation  AttachmentKind = "location"
	KindContact   AttachmentKind = "contact"
	KindPoll      AttachmentKind = "poll"

	// KindMultiple 多附件包装，Items 中保存有序的单个附件
	KindMultiple AttachmentKind = "multiple"
)

// IsValid 是否为单个附件的合法类型（不含 multiple）
func (k AttachmentKind) IsValid() bool {
	switch k {
	case KindPhoto, KindDocument, KindVideo, KindAudio, KindVoice,
		KindVideoNote, KindSticker, KindLocation, KindContact, KindPoll:
		return true
	default:
		return false
	}
}

// Attachment 单个附件描述
// FileID 为传输层的文件引用，其余字段按类型选填
type Attachment struct {
	Kind     AttachmentKind `json:"type" bson:"type"`
	FileID   string         `json:"file_id,omitempty" bson:"file_id,omitempty"`
	FileName string         `json:"file_name,omitempty" bson:"file_name,omitempty"`
	MimeType string         `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	Title    string         `json:"title,omitempty" bson:"title,omitempty"`
	Duration int            `json:"duration,omitempty" bson:"duration,omitempty"`
	Emoji    string         `json:"emoji,omitempty" bson:"emoji,omitempty"`

	Latitude  float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`

	PhoneNumber string `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	FirstName   string `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty" bson:"last_name,omitempty"`

	Question string `json:"question,omitempty" bson:"question,omitempty"`
}

// Summary 返回附件的单行可读描述
func (a Attachment) Summary() string {
	switch a.Kind {
	case KindPhoto:
		return "📷 Photo attached"
	case KindDocument:
		name := a.FileName
		if name == "" {
			name = "Unknown file"
		}
		return "📎 Document: " + name
	case KindVideo:
		return "🎥 Video attached"
	case KindAudio:
		title := a.Title
		if title == "" {
			title = "Unknown audio"
		}
		return "🎵 Audio: " + title
	case KindVoice:
		return fmt.Sprintf("🎤 Voice message (%ds)", a.Duration)
	case KindVideoNote:
		return "🎬 Video note attached"
	case KindSticker:
		emoji := a.Emoji
		if emoji == "" {
			emoji = "N/A"
		}
		return "🎭 Sticker: " + emoji
	case KindLocation:
		return fmt.Sprintf("📍 Location: %.4f, %.4f", a.Latitude, a.Longitude)
	case KindContact:
		name := strings.TrimSpace(a.FirstName + " " + a.LastName)
		return fmt.Sprintf("👤 Contact: %s (%s)", name, a.PhoneNumber)
	case KindPoll:
		return "📊 Poll: " + a.Question
	default:
		return "📎 Attachment"
	}
}

// MediaInfo 任务附带的媒体信息
//
// 两种形态:
//   - 单个附件: Kind 为具体类型，字段来自内嵌的 Attachment
//   - 多个附件: Kind 为 multiple，Items 保存到达顺序的附件列表
type MediaInfo struct {
	Attachment `bson:",inline"`
	Items      []Attachment `json:"items,omitempty" bson:"items,omitempty"`
}

// SingleMedia 包装单个附件
func SingleMedia(a Attachment) *MediaInfo {
	return &MediaInfo{Attachment: a}
}

// MultipleMedia 包装多个附件；空列表返回 nil
func MultipleMedia(items []Attachment) *MediaInfo {
	if len(items) == 0 {
		return nil
	}
	copied := make([]Attachment, len(items))
	copy(copied, items)
	return &MediaInfo{
		Attachment: Attachment{Kind: KindMultiple},
		Items:      copied,
	}
}

// IsMultiple 是否为多附件包装
func (m *MediaInfo) IsMultiple() bool {
	return m != nil && m.Kind == KindMultiple
}

// Attachments 展开为附件列表
func (m *MediaInfo) Attachments() []Attachment {
	if m == nil {
		return nil
	}
	if m.IsMultiple() {
		return m.Items
	}
	return []Attachment{m.Attachment}
}

// Summary 媒体摘要，多附件时返回数量
func (m *MediaInfo) Summary() string {
	if m == nil {
		return ""
	}
	if m.IsMultiple() {
		return fmt.Sprintf("📎 %d attachments", len(m.Items))
	}
	return m.Attachment.Summary()
}
