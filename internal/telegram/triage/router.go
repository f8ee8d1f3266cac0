package triage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/service"
	"task_bot/internal/telegram/session"
)

// Config 分拣参数
type Config struct {
	ForwardWindow   time.Duration
	ForwardMax      int
	MediaGroupDelay time.Duration
	MediaGroupTTL   time.Duration
	AttachmentTTL   time.Duration
}

// DefaultConfig 默认分拣参数
func DefaultConfig() Config {
	return Config{
		ForwardWindow:   30 * time.Second,
		ForwardMax:      10,
		MediaGroupDelay: 3 * time.Second,
		MediaGroupTTL:   5 * time.Minute,
		AttachmentTTL:   30 * time.Minute,
	}
}

// Router 消息分拣核心
//
// 所有会话状态与任务写入都在 mu 内串行执行，定时器回调同样先获取 mu。
type Router struct {
	mu       sync.Mutex
	cfg      Config
	tasks    service.TaskService
	notifier Notifier
	clock    clock.Clock
	timers   *clock.KeyedTimers
	newID    func() string

	attachments *session.Attachments
	forwards    *session.ForwardBatches
	groups      *session.MediaGroups
	stash       *session.Stash
	prompts     *session.Prompts

	edits         map[int64]int64  // user → 正在编辑的任务 ID
	awaitingGroup map[int64]string // user → 等待描述的媒体组 ID
	batchAcks     map[int64]Ref    // user → 批量转发进度消息
	batchChats    map[int64]int64  // user → 批量转发所在会话

	rules ruleChain
}

// NewRouter 创建分拣器
func NewRouter(cfg Config, tasks service.TaskService, notifier Notifier, c clock.Clock) *Router {
	if c == nil {
		c = clock.New()
	}
	defaults := DefaultConfig()
	if cfg.ForwardWindow <= 0 {
		cfg.ForwardWindow = defaults.ForwardWindow
	}
	if cfg.ForwardMax <= 0 {
		cfg.ForwardMax = defaults.ForwardMax
	}
	if cfg.MediaGroupDelay <= 0 {
		cfg.MediaGroupDelay = defaults.MediaGroupDelay
	}
	if cfg.MediaGroupTTL <= 0 {
		cfg.MediaGroupTTL = defaults.MediaGroupTTL
	}
	if cfg.AttachmentTTL <= 0 {
		cfg.AttachmentTTL = defaults.AttachmentTTL
	}

	r := &Router{
		cfg:           cfg,
		tasks:         tasks,
		notifier:      notifier,
		clock:         c,
		timers:        clock.NewKeyedTimers(c),
		newID:         uuid.NewString,
		attachments:   session.NewAttachments(),
		forwards:      session.NewForwardBatches(cfg.ForwardWindow, cfg.ForwardMax),
		groups:        session.NewMediaGroups(),
		stash:         session.NewStash(),
		prompts:       session.NewPrompts(),
		edits:         make(map[int64]int64),
		awaitingGroup: make(map[int64]string),
		batchAcks:     make(map[int64]Ref),
		batchChats:    make(map[int64]int64),
	}
	r.registerRules()
	logger.L().Infof("Triage router initialized: rules=%s", strings.Join(r.rules.names(), ","))
	return r
}

// Stop 取消所有待执行的定时任务
func (r *Router) Stop() {
	r.timers.Stop()
}

// Handle 分拣一条非命令入站消息
func (r *Router) Handle(ctx context.Context, msg *models.IncomingMessage) error {
	if msg == nil || msg.SenderID == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	handled, err := r.rules.dispatch(ctx, msg)
	if err != nil {
		logger.L().Errorf("Triage failed: user_id=%d, message_id=%d, error=%v", msg.SenderID, msg.MessageID, err)
		return err
	}
	if !handled {
		logger.L().Debugf("Message ignored by triage: user_id=%d, message_id=%d", msg.SenderID, msg.MessageID)
	}
	return nil
}

// State 用户当前状态
func (r *Router) State(userID int64) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(userID)
}

func (r *Router) stateLocked(userID int64) State {
	if _, ok := r.edits[userID]; ok {
		return StateAwaitingEditText
	}
	if _, ok := r.awaitingGroup[userID]; ok {
		return StateAwaitingMediaGroupText
	}
	if r.attachments.Active(userID) {
		return StateCollectingAttachments
	}
	if r.forwards.Size(userID) > 0 {
		return StateBatchingForwards
	}
	if r.prompts.Peek(userID) != nil {
		return StateAwaitingConfirmation
	}
	return StateIdle
}

// StartCollecting 开启附件收集（/collect）
func (r *Router) StartCollecting(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attachments.Start(userID, r.clock.Now())
	logger.L().Infof("Attachment collection started: user_id=%d", userID)
	return r.send(ctx, chatID, "📎 Collecting attachments.\n\nSend photos, documents or other media, then use /done <task text> to create one task with all of them.", nil)
}

// Commit 将已收集的附件与文本合并为任务（/done <text>）
func (r *Router) Commit(ctx context.Context, userID, chatID int64, text string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attachments.Active(userID) {
		return nil, r.send(ctx, chatID, "❌ No active attachment collection. Use /collect first.", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, r.send(ctx, chatID, "Please provide a task description.\nExample: /done Review the photos", nil)
	}

	count := r.attachments.Count(userID)
	media := r.attachments.Consume(userID)
	task, err := r.tasks.Add(ctx, userID, models.NewTask{Text: text, Media: media})
	if err != nil {
		// 写入失败时恢复会话，用户可以重试
		r.attachments.Start(userID, r.clock.Now())
		r.attachments.Append(userID, media.Attachments(), r.clock.Now())
		logger.L().Errorf("Failed to commit attachment collection: user_id=%d, error=%v", userID, err)
		return nil, r.send(ctx, chatID, "❌ Failed to save task, please try again.", nil)
	}

	logger.L().Infof("Attachment collection committed: user_id=%d, task_id=%d, attachments=%d", userID, task.ID, count)
	return task, r.send(ctx, chatID, fmt.Sprintf("%s\n📎 %d attachment(s)", taskAddedText(task), count), nil)
}

// StopCollecting 结束附件收集并丢弃已收集的附件
func (r *Router) StopCollecting(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.attachments.Count(userID)
	if !r.attachments.Discard(userID) {
		return r.send(ctx, chatID, "Nothing to do: no attachment collection in progress.", nil)
	}
	logger.L().Infof("Attachment collection stopped: user_id=%d, discarded=%d", userID, count)
	return r.send(ctx, chatID, fmt.Sprintf("Attachment collection stopped. %d attachment(s) discarded.", count), nil)
}

// BeginEdit 进入任务文本编辑状态（/edit <id>）
func (r *Router) BeginEdit(ctx context.Context, userID, chatID, taskID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.tasks.Task(userID, taskID)
	if err != nil {
		return r.send(ctx, chatID, fmt.Sprintf("❌ Task #%d not found.", taskID), nil)
	}
	// 提示发送失败时不进入编辑状态，否则下一条普通消息会覆盖任务
	text := fmt.Sprintf("✏️ Send the new text for task #%d.\n\nCurrent: %s\n\nUse /cancel to keep it unchanged.", taskID, truncate(task.Text, previewLimit))
	if err := r.send(ctx, chatID, text, nil); err != nil {
		return err
	}
	r.edits[userID] = taskID
	logger.L().Infof("Edit started: user_id=%d, task_id=%d", userID, taskID)
	return nil
}

// Accept 确认草稿并创建任务
// 没有匹配的草稿时提示无事可做，不返回错误
func (r *Router) Accept(ctx context.Context, userID int64, origin Ref, draftID string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prompt := r.prompts.Take(userID, draftID)
	if prompt == nil {
		return nil, r.reply(ctx, origin, "🤷 Nothing to do: this draft is no longer pending.")
	}

	draft := prompt.Draft
	input := draft.ToNewTask()
	if strings.TrimSpace(input.Text) == "" && draft.Media != nil {
		input.Text = draft.Media.Summary()
	}

	task, err := r.tasks.Add(ctx, userID, input)
	if err != nil {
		if errors.Is(err, service.ErrEmptyText) {
			return nil, r.reply(ctx, origin, "❌ Task content not found.")
		}
		r.prompts.Put(userID, prompt)
		logger.L().Errorf("Failed to accept draft: user_id=%d, draft_id=%s, error=%v", userID, draft.ID, err)
		return nil, r.reply(ctx, origin, "❌ Failed to save task, please try again.")
	}

	r.releaseDraftLocked(userID, draft)
	logger.L().Infof("Draft accepted: user_id=%d, draft_id=%s, kind=%s, task_id=%d", userID, draft.ID, draft.Kind, task.ID)

	text := taskAddedText(task)
	if task.MessageLink != "" {
		text += "\n\n🔗 Original Message: " + task.MessageLink
	}
	return task, r.reply(ctx, origin, text)
}

// Cancel 丢弃草稿；重复取消为无操作
func (r *Router) Cancel(ctx context.Context, userID int64, origin Ref, draftID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prompt := r.prompts.Take(userID, draftID)
	if prompt == nil {
		return false, r.reply(ctx, origin, "🤷 Nothing to do: this draft is no longer pending.")
	}
	r.releaseDraftLocked(userID, prompt.Draft)
	logger.L().Infof("Draft cancelled: user_id=%d, draft_id=%s", userID, prompt.Draft.ID)
	return true, r.reply(ctx, origin, "❌ Task creation cancelled.")
}

// CancelAll 清除用户全部进行中的状态（/cancel）
func (r *Router) CancelAll(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared []string
	if _, ok := r.edits[userID]; ok {
		delete(r.edits, userID)
		cleared = append(cleared, "edit")
	}
	if groupID, ok := r.awaitingGroup[userID]; ok {
		delete(r.awaitingGroup, userID)
		r.stash.Take(groupID)
		cleared = append(cleared, "media group description")
	}
	if r.attachments.Discard(userID) {
		cleared = append(cleared, "attachment collection")
	}
	if r.forwards.Discard(userID) {
		cleared = append(cleared, "forward batch")
	}
	r.timers.Cancel(forwardTimerKey(userID))
	r.clearBatchAckLocked(ctx, userID)
	if prompt := r.prompts.Take(userID, ""); prompt != nil {
		r.releaseDraftLocked(userID, prompt.Draft)
		r.retirePromptLocked(ctx, prompt, "❌ Task creation cancelled.")
		cleared = append(cleared, "pending draft")
	}

	if len(cleared) == 0 {
		return r.send(ctx, chatID, "🤷 Nothing to cancel.", nil)
	}
	logger.L().Infof("User state cleared: user_id=%d, cleared=%s", userID, strings.Join(cleared, ","))
	return r.send(ctx, chatID, "❌ Cancelled: "+strings.Join(cleared, ", ")+".", nil)
}

// releaseDraftLocked 草稿结束后清理关联的媒体组暂存
func (r *Router) releaseDraftLocked(userID int64, draft *models.Draft) {
	if draft.MediaGroupID == "" {
		return
	}
	r.stash.Take(draft.MediaGroupID)
	if r.awaitingGroup[userID] == draft.MediaGroupID {
		delete(r.awaitingGroup, userID)
	}
}

// applyEdit 编辑状态下的下一条消息作为任务新文本
func (r *Router) applyEdit(ctx context.Context, msg *models.IncomingMessage) error {
	text := msg.Body()
	if text == "" {
		return r.send(ctx, msg.ChatID, "Please send the new task text as a message, or /cancel.", nil)
	}

	taskID := r.edits[msg.SenderID]
	delete(r.edits, msg.SenderID)

	task, err := r.tasks.EditText(ctx, msg.SenderID, taskID, text)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return r.send(ctx, msg.ChatID, fmt.Sprintf("❌ Task #%d not found.", taskID), nil)
	case err != nil:
		logger.L().Errorf("Failed to edit task: user_id=%d, task_id=%d, error=%v", msg.SenderID, taskID, err)
		return r.send(ctx, msg.ChatID, "❌ Failed to save task, please try again.", nil)
	}
	return r.send(ctx, msg.ChatID, fmt.Sprintf("✏️ Task #%d updated: %s", task.ID, truncate(task.Text, previewLimit)), nil)
}

// handleText 普通文本生成确认草稿
func (r *Router) handleText(ctx context.Context, msg *models.IncomingMessage) error {
	text := msg.Body()
	messageID := msg.MessageID
	draft := &models.Draft{
		Kind:      models.DraftKindText,
		Text:      text,
		MessageID: &messageID,
		CreatedAt: r.clock.Now(),
	}
	return r.promptLocked(ctx, msg.SenderID, msg.ChatID, draft)
}

// handleMedia 单条媒体生成确认草稿，媒体组交给收集器
func (r *Router) handleMedia(ctx context.Context, msg *models.IncomingMessage) error {
	if msg.MediaGroupID != "" {
		r.bufferMediaGroupLocked(msg)
		return nil
	}

	rec := models.Extract(msg)
	messageID := msg.MessageID
	draft := &models.Draft{
		Kind:      models.DraftKindMedia,
		Text:      rec.Content,
		MessageID: &messageID,
		Media:     rec.Media,
		CreatedAt: r.clock.Now(),
	}
	return r.promptLocked(ctx, msg.SenderID, msg.ChatID, draft)
}

// collectAttachment 附件收集会话中追加媒体
func (r *Router) collectAttachment(ctx context.Context, msg *models.IncomingMessage) error {
	if msg.MediaGroupID != "" {
		r.bufferMediaGroupLocked(msg)
		return nil
	}

	count, _ := r.attachments.Append(msg.SenderID, []models.Attachment{*msg.Attachment}, r.clock.Now())
	logger.L().Debugf("Attachment collected: user_id=%d, total=%d", msg.SenderID, count)
	return r.send(ctx, msg.ChatID, fmt.Sprintf("📎 Attachment added (%d collected). Send more or use /done <task text>.", count), nil)
}

// send 发送文本，失败只记录日志
func (r *Router) send(ctx context.Context, chatID int64, text string, keyboard Keyboard) error {
	_, err := r.sendWithID(ctx, chatID, text, keyboard)
	return err
}

func (r *Router) sendWithID(ctx context.Context, chatID int64, text string, keyboard Keyboard) (int, error) {
	if r.notifier == nil || chatID == 0 {
		return 0, nil
	}
	messageID, err := r.notifier.SendText(ctx, chatID, text, keyboard)
	if err != nil {
		logger.L().Warnf("Failed to send message: chat_id=%d, error=%v", chatID, err)
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return messageID, nil
}

// reply 编辑来源消息，没有来源消息时发送新消息
func (r *Router) reply(ctx context.Context, origin Ref, text string) error {
	if origin.MessageID == 0 {
		return r.send(ctx, origin.ChatID, text, nil)
	}
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.EditText(ctx, origin.ChatID, origin.MessageID, text, nil); err != nil {
		logger.L().Warnf("Failed to edit message: chat_id=%d, message_id=%d, error=%v", origin.ChatID, origin.MessageID, err)
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func forwardTimerKey(userID int64) string {
	return "forward:" + strconv.FormatInt(userID, 10)
}

func mediaGroupTimerKey(groupID string) string {
	return "media_group:" + groupID
}
