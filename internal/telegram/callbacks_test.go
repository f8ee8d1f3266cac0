package telegram

import (
	"testing"

	botModels "github.com/go-telegram/bot/models"
)

func TestTaskCallbackRoundTrip(t *testing.T) {
	for _, action := range []string{actionComplete, actionDelete, actionArchive, actionPurge} {
		data := taskCallback(action, 1717232400000)
		gotAction, gotID, ok := parseTaskCallback(data)
		if !ok || gotAction != action || gotID != 1717232400000 {
			t.Fatalf("parseTaskCallback(%q) = (%q, %d, %v)", data, gotAction, gotID, ok)
		}
	}
}

func TestParseTaskCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"task:complete",
		"task:complete:abc",
		"task:complete:0",
		"task:explode:5",
		"draft:accept:5",
		"",
	} {
		if _, _, ok := parseTaskCallback(data); ok {
			t.Fatalf("expected %q to be rejected", data)
		}
	}
}

func TestCallbackOrigin(t *testing.T) {
	query := &botModels.CallbackQuery{
		From: botModels.User{ID: 3},
		Message: botModels.MaybeInaccessibleMessage{
			Message: &botModels.Message{ID: 44, Chat: botModels.Chat{ID: 30}},
		},
	}
	origin := callbackOrigin(query)
	if origin.ChatID != 30 || origin.MessageID != 44 {
		t.Fatalf("unexpected origin: %+v", origin)
	}

	inaccessible := &botModels.CallbackQuery{
		From: botModels.User{ID: 3},
		Message: botModels.MaybeInaccessibleMessage{
			InaccessibleMessage: &botModels.InaccessibleMessage{Chat: botModels.Chat{ID: 31}},
		},
	}
	if origin := callbackOrigin(inaccessible); origin.ChatID != 31 || origin.MessageID != 0 {
		t.Fatalf("unexpected origin for inaccessible message: %+v", origin)
	}

	if origin := callbackOrigin(&botModels.CallbackQuery{From: botModels.User{ID: 3}}); origin.ChatID != 3 {
		t.Fatalf("expected fallback to user chat, got %+v", origin)
	}
}
