package telegram

import (
	"testing"
	"time"

	botModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task_bot/internal/telegram/models"
)

func TestNormalizePlainText(t *testing.T) {
	msg := &botModels.Message{
		ID:   10,
		From: &botModels.User{ID: 7, Username: "alice"},
		Chat: botModels.Chat{ID: 70, Type: botModels.ChatTypePrivate},
		Text: "buy milk",
		Date: 1717232400,
	}

	incoming := Normalize(msg)
	require.NotNil(t, incoming)
	assert.Equal(t, int64(7), incoming.SenderID)
	assert.Equal(t, int64(70), incoming.ChatID)
	assert.Equal(t, 10, incoming.MessageID)
	assert.Equal(t, "buy milk", incoming.Text)
	assert.Nil(t, incoming.Attachment)
	assert.Nil(t, incoming.Forward)
}

func TestNormalizeNil(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatalf("expected nil for nil message")
	}
}

func TestExtractAttachmentKinds(t *testing.T) {
	tests := []struct {
		name string
		msg  *botModels.Message
		want models.Attachment
	}{
		{
			name: "photo picks largest size",
			msg: &botModels.Message{Photo: []botModels.PhotoSize{
				{FileID: "small"}, {FileID: "medium"}, {FileID: "large"},
			}},
			want: models.Attachment{Kind: models.KindPhoto, FileID: "large"},
		},
		{
			name: "document",
			msg:  &botModels.Message{Document: &botModels.Document{FileID: "d", FileName: "a.pdf", MimeType: "application/pdf"}},
			want: models.Attachment{Kind: models.KindDocument, FileID: "d", FileName: "a.pdf", MimeType: "application/pdf"},
		},
		{
			name: "voice",
			msg:  &botModels.Message{Voice: &botModels.Voice{FileID: "v", Duration: 4}},
			want: models.Attachment{Kind: models.KindVoice, FileID: "v", Duration: 4},
		},
		{
			name: "sticker",
			msg:  &botModels.Message{Sticker: &botModels.Sticker{FileID: "s", Emoji: "🔥"}},
			want: models.Attachment{Kind: models.KindSticker, FileID: "s", Emoji: "🔥"},
		},
		{
			name: "location",
			msg:  &botModels.Message{Location: &botModels.Location{Latitude: 1.5, Longitude: 2.5}},
			want: models.Attachment{Kind: models.KindLocation, Latitude: 1.5, Longitude: 2.5},
		},
		{
			name: "contact",
			msg:  &botModels.Message{Contact: &botModels.Contact{PhoneNumber: "+1", FirstName: "Ann"}},
			want: models.Attachment{Kind: models.KindContact, PhoneNumber: "+1", FirstName: "Ann"},
		},
		{
			name: "poll has no file reference",
			msg:  &botModels.Message{Poll: &botModels.Poll{ID: "p1", Question: "Lunch?"}},
			want: models.Attachment{Kind: models.KindPoll, Question: "Lunch?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractAttachment(tt.msg)
			if got == nil {
				t.Fatalf("expected attachment, got nil")
			}
			if *got != tt.want {
				t.Fatalf("extractAttachment() = %+v, want %+v", *got, tt.want)
			}
		})
	}

	if got := extractAttachment(&botModels.Message{Text: "hi"}); got != nil {
		t.Fatalf("expected no attachment for text message, got %+v", got)
	}
}

func TestExtractForwardOrigins(t *testing.T) {
	date := 1717232400
	want := time.Unix(int64(date), 0).UTC()

	t.Run("user", func(t *testing.T) {
		fwd := extractForward(&botModels.MessageOrigin{MessageOriginUser: &botModels.MessageOriginUser{
			Date:       date,
			SenderUser: botModels.User{FirstName: "Bob", LastName: "Lee"},
		}})
		require.NotNil(t, fwd)
		assert.Equal(t, "Bob Lee", fwd.SenderName)
		assert.Equal(t, want, fwd.Date)
		assert.Empty(t, fwd.SourceChat)
	})

	t.Run("hidden user", func(t *testing.T) {
		fwd := extractForward(&botModels.MessageOrigin{MessageOriginHiddenUser: &botModels.MessageOriginHiddenUser{
			Date:           date,
			SenderUserName: "Anonymous",
		}})
		require.NotNil(t, fwd)
		assert.Equal(t, "Anonymous", fwd.SenderName)
	})

	t.Run("channel keeps permalink fields", func(t *testing.T) {
		fwd := extractForward(&botModels.MessageOrigin{MessageOriginChannel: &botModels.MessageOriginChannel{
			Date:      date,
			Chat:      botModels.Chat{Title: "News", Username: "newschannel"},
			MessageID: 77,
		}})
		require.NotNil(t, fwd)
		assert.Equal(t, "News", fwd.SenderName)
		assert.Equal(t, "newschannel", fwd.SourceChat)
		assert.Equal(t, 77, fwd.SourceMessageID)

		record := models.Extract(&models.IncomingMessage{Text: "x", Forward: fwd})
		assert.Equal(t, "https://t.me/newschannel/77", record.Link)
	})

	t.Run("chat without title", func(t *testing.T) {
		fwd := extractForward(&botModels.MessageOrigin{MessageOriginChat: &botModels.MessageOriginChat{
			SenderChat: botModels.Chat{Username: "group"},
		}})
		require.NotNil(t, fwd)
		assert.Equal(t, "@group", fwd.SenderName)
		assert.True(t, fwd.Date.IsZero())
	})

	t.Run("not forwarded", func(t *testing.T) {
		if fwd := extractForward(nil); fwd != nil {
			t.Fatalf("expected nil provenance, got %+v", fwd)
		}
	})

	t.Run("unknown origin still counts as forward", func(t *testing.T) {
		if fwd := extractForward(&botModels.MessageOrigin{}); fwd == nil {
			t.Fatalf("expected empty provenance for unknown origin")
		}
	})
}
