package session

import "task_bot/internal/telegram/models"

// Prompt 等待确认的草稿及其提示消息
type Prompt struct {
	Draft     *models.Draft
	ChatID    int64
	MessageID int
}

// Prompts 每个用户只保留一个待确认草稿，新草稿覆盖旧草稿
type Prompts struct {
	slots map[int64]*Prompt
}

// NewPrompts 创建草稿槽
func NewPrompts() *Prompts {
	return &Prompts{slots: make(map[int64]*Prompt)}
}

// Put 写入草稿，返回被覆盖的旧草稿
func (p *Prompts) Put(userID int64, prompt *Prompt) *Prompt {
	previous := p.slots[userID]
	p.slots[userID] = prompt
	return previous
}

// Peek 查看当前草稿
func (p *Prompts) Peek(userID int64) *Prompt {
	return p.slots[userID]
}

// Take 取出 ID 匹配的草稿；draftID 为空时取出当前草稿
func (p *Prompts) Take(userID int64, draftID string) *Prompt {
	prompt, ok := p.slots[userID]
	if !ok {
		return nil
	}
	if draftID != "" && prompt.Draft.ID != draftID {
		return nil
	}
	delete(p.slots, userID)
	return prompt
}

// SetMessage 记录提示消息位置，用于之后编辑
func (p *Prompts) SetMessage(userID int64, draftID string, chatID int64, messageID int) {
	if prompt, ok := p.slots[userID]; ok && prompt.Draft.ID == draftID {
		prompt.ChatID = chatID
		prompt.MessageID = messageID
	}
}
