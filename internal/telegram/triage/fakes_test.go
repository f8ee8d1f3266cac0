package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"task_bot/internal/clock"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/service"
)

type sentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  Keyboard
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  Keyboard
}

// telegramTextLimit Bot API 单条文本消息的字符上限
const telegramTextLimit = 4096

var errSendFailed = errors.New("send failed")

// fakeNotifier 记录全部出站消息
// maxRunes > 0 时像 Bot API 一样拒绝超长文本；failSends 时所有发送都失败
type fakeNotifier struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	edits     []editedMessage
	media     []models.Attachment
	maxRunes  int
	failSends bool
	rejected  int
}

func (n *fakeNotifier) rejectLocked(text string) error {
	if n.failSends {
		n.rejected++
		return errSendFailed
	}
	if n.maxRunes > 0 && utf8.RuneCountInString(text) > n.maxRunes {
		n.rejected++
		return fmt.Errorf("Bad Request: message is too long (%d runes)", utf8.RuneCountInString(text))
	}
	return nil
}

func (n *fakeNotifier) SendText(_ context.Context, chatID int64, text string, keyboard Keyboard) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.rejectLocked(text); err != nil {
		return 0, err
	}
	n.nextID++
	n.sent = append(n.sent, sentMessage{ChatID: chatID, MessageID: n.nextID, Text: text, Keyboard: keyboard})
	return n.nextID, nil
}

func (n *fakeNotifier) SendMedia(_ context.Context, _ int64, media models.Attachment, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.media = append(n.media, media)
	return nil
}

func (n *fakeNotifier) EditText(_ context.Context, chatID int64, messageID int, text string, keyboard Keyboard) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.rejectLocked(text); err != nil {
		return err
	}
	n.edits = append(n.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: keyboard})
	return nil
}

func (n *fakeNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMessage{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) lastEdit() editedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.edits) == 0 {
		return editedMessage{}
	}
	return n.edits[len(n.edits)-1]
}

// prompts 返回所有带确认按钮的消息
func (n *fakeNotifier) prompts() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if draftIDFrom(m) != "" {
			out = append(out, m)
		}
	}
	return out
}

func draftIDFrom(m sentMessage) string {
	for _, row := range m.Keyboard {
		for _, b := range row {
			if strings.HasPrefix(b.Data, CallbackDraftAccept) {
				return strings.TrimPrefix(b.Data, CallbackDraftAccept)
			}
		}
	}
	return ""
}

// mapStore 内存快照存储
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *mapStore) Load(_ context.Context, name string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *mapStore) Save(_ context.Context, name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.data[name] = raw
	return nil
}

func (s *mapStore) Close(context.Context) error { return nil }

const (
	user int64 = 501
	chat int64 = 9001
)

type harness struct {
	router   *Router
	tasks    *service.TaskServiceImpl
	notifier *fakeNotifier
	clock    *clock.Fake
	msgID    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := clock.NewFake(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	tasks := service.NewTaskService(&mapStore{data: make(map[string][]byte)}, fake)
	tasks.Load(context.Background())
	notifier := &fakeNotifier{}

	router := NewRouter(DefaultConfig(), tasks, notifier, fake)
	seq := 0
	router.newID = func() string {
		seq++
		return fmt.Sprintf("d%d", seq)
	}
	t.Cleanup(router.Stop)

	return &harness{router: router, tasks: tasks, notifier: notifier, clock: fake}
}

func (h *harness) message() *models.IncomingMessage {
	h.msgID++
	return &models.IncomingMessage{
		SenderID:  user,
		ChatID:    chat,
		MessageID: h.msgID,
	}
}

func (h *harness) text(t *testing.T, text string) {
	t.Helper()
	msg := h.message()
	msg.Text = text
	if err := h.router.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle(%q) failed: %v", text, err)
	}
}

func (h *harness) forward(t *testing.T, text string) {
	t.Helper()
	msg := h.message()
	msg.Text = text
	msg.Forward = &models.ForwardProvenance{SenderName: "Bob"}
	if err := h.router.Handle(context.Background(), msg); err != nil {
		t.Fatalf("forward %q failed: %v", text, err)
	}
}

func (h *harness) groupItem(t *testing.T, groupID, fileID, caption string) {
	t.Helper()
	msg := h.message()
	msg.Caption = caption
	msg.MediaGroupID = groupID
	msg.Attachment = &models.Attachment{Kind: models.KindPhoto, FileID: fileID}
	if err := h.router.Handle(context.Background(), msg); err != nil {
		t.Fatalf("media group item %s failed: %v", fileID, err)
	}
}

func (h *harness) photo(t *testing.T, fileID, caption string) {
	t.Helper()
	msg := h.message()
	msg.Caption = caption
	msg.Attachment = &models.Attachment{Kind: models.KindPhoto, FileID: fileID}
	if err := h.router.Handle(context.Background(), msg); err != nil {
		t.Fatalf("photo %s failed: %v", fileID, err)
	}
}
