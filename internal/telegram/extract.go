package telegram

import (
	"strings"
	"time"

	botModels "github.com/go-telegram/bot/models"

	"task_bot/internal/telegram/models"
)

// Normalize 将 Telegram 消息转换为分拣核心使用的入站消息
// 转发来源与附件字段只在这里读取
func Normalize(msg *botModels.Message) *models.IncomingMessage {
	if msg == nil {
		return nil
	}

	incoming := &models.IncomingMessage{
		ChatID:       msg.Chat.ID,
		MessageID:    msg.ID,
		Text:         msg.Text,
		Caption:      msg.Caption,
		MediaGroupID: msg.MediaGroupID,
		Attachment:   extractAttachment(msg),
		Forward:      extractForward(msg.ForwardOrigin),
	}
	if msg.From != nil {
		incoming.SenderID = msg.From.ID
	}
	return incoming
}

// extractAttachment 读取消息携带的附件，照片取最大尺寸
func extractAttachment(msg *botModels.Message) *models.Attachment {
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return &models.Attachment{Kind: models.KindPhoto, FileID: largest.FileID}
	case msg.Document != nil:
		return &models.Attachment{
			Kind:     models.KindDocument,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
		}
	case msg.Video != nil:
		return &models.Attachment{
			Kind:     models.KindVideo,
			FileID:   msg.Video.FileID,
			Duration: msg.Video.Duration,
			MimeType: msg.Video.MimeType,
		}
	case msg.Audio != nil:
		return &models.Attachment{
			Kind:     models.KindAudio,
			FileID:   msg.Audio.FileID,
			Title:    msg.Audio.Title,
			Duration: msg.Audio.Duration,
			MimeType: msg.Audio.MimeType,
		}
	case msg.Voice != nil:
		return &models.Attachment{
			Kind:     models.KindVoice,
			FileID:   msg.Voice.FileID,
			Duration: msg.Voice.Duration,
		}
	case msg.VideoNote != nil:
		return &models.Attachment{
			Kind:     models.KindVideoNote,
			FileID:   msg.VideoNote.FileID,
			Duration: msg.VideoNote.Duration,
		}
	case msg.Sticker != nil:
		return &models.Attachment{
			Kind:   models.KindSticker,
			FileID: msg.Sticker.FileID,
			Emoji:  msg.Sticker.Emoji,
		}
	case msg.Location != nil:
		return &models.Attachment{
			Kind:      models.KindLocation,
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case msg.Contact != nil:
		return &models.Attachment{
			Kind:        models.KindContact,
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
		}
	case msg.Poll != nil:
		return &models.Attachment{
			Kind:     models.KindPoll,
			Question: msg.Poll.Question,
		}
	default:
		return nil
	}
}

// extractForward 读取转发来源
func extractForward(origin *botModels.MessageOrigin) *models.ForwardProvenance {
	if origin == nil {
		return nil
	}

	switch {
	case origin.MessageOriginUser != nil:
		o := origin.MessageOriginUser
		return &models.ForwardProvenance{
			SenderName: userDisplayName(&o.SenderUser),
			Date:       unixTime(o.Date),
		}
	case origin.MessageOriginHiddenUser != nil:
		o := origin.MessageOriginHiddenUser
		return &models.ForwardProvenance{
			SenderName: o.SenderUserName,
			Date:       unixTime(o.Date),
		}
	case origin.MessageOriginChat != nil:
		o := origin.MessageOriginChat
		return &models.ForwardProvenance{
			SenderName: chatDisplayName(&o.SenderChat),
			SourceChat: o.SenderChat.Username,
			Date:       unixTime(o.Date),
		}
	case origin.MessageOriginChannel != nil:
		o := origin.MessageOriginChannel
		return &models.ForwardProvenance{
			SenderName:      chatDisplayName(&o.Chat),
			SourceChat:      o.Chat.Username,
			SourceMessageID: o.MessageID,
			Date:            unixTime(o.Date),
		}
	default:
		// 未知的来源类型仍视为转发
		return &models.ForwardProvenance{}
	}
}

func userDisplayName(u *botModels.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}

func chatDisplayName(c *botModels.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func unixTime(sec int) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
