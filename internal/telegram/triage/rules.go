package triage

import (
	"context"
	"sort"

	"task_bot/internal/logger"
	"task_bot/internal/telegram/models"
)

// rule 分拣规则
// 按 priority 从小到大依次匹配，第一个匹配的规则处理消息后停止
type rule struct {
	name     string
	priority int
	match    func(msg *models.IncomingMessage) bool
	process  func(ctx context.Context, msg *models.IncomingMessage) error
}

type ruleChain struct {
	rules []rule
}

// register 注册规则并按优先级排序
func (c *ruleChain) register(r rule) {
	c.rules = append(c.rules, r)
	sort.SliceStable(c.rules, func(i, j int) bool {
		return c.rules[i].priority < c.rules[j].priority
	})
	logger.L().Debugf("Registered triage rule: %s (priority: %d)", r.name, r.priority)
}

// dispatch 返回是否有规则处理了消息
func (c *ruleChain) dispatch(ctx context.Context, msg *models.IncomingMessage) (bool, error) {
	for _, r := range c.rules {
		if !r.match(msg) {
			continue
		}
		logger.L().Debugf("Triage rule %s matched: user_id=%d, message_id=%d", r.name, msg.SenderID, msg.MessageID)
		return true, r.process(ctx, msg)
	}
	return false, nil
}

func (c *ruleChain) names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// registerRules 注册全部分拣规则
func (r *Router) registerRules() {
	r.rules.register(rule{
		name:     "edit_text",
		priority: 10,
		match: func(msg *models.IncomingMessage) bool {
			_, editing := r.edits[msg.SenderID]
			return editing && !msg.IsCommand()
		},
		process: r.applyEdit,
	})
	r.rules.register(rule{
		name:     "media_group_text",
		priority: 20,
		match: func(msg *models.IncomingMessage) bool {
			_, waiting := r.awaitingGroup[msg.SenderID]
			return waiting && !msg.IsCommand()
		},
		process: r.applyMediaGroupText,
	})
	r.rules.register(rule{
		name:     "forward_batch",
		priority: 30,
		match: func(msg *models.IncomingMessage) bool {
			return msg.IsForwarded()
		},
		process: r.handleForward,
	})
	r.rules.register(rule{
		name:     "attachment_session",
		priority: 40,
		match: func(msg *models.IncomingMessage) bool {
			return msg.HasMedia() && r.attachments.Active(msg.SenderID)
		},
		process: r.collectAttachment,
	})
	r.rules.register(rule{
		name:     "single_media",
		priority: 50,
		match: func(msg *models.IncomingMessage) bool {
			return msg.HasMedia()
		},
		process: r.handleMedia,
	})
	r.rules.register(rule{
		name:     "plain_text",
		priority: 60,
		match: func(msg *models.IncomingMessage) bool {
			return !msg.IsCommand() && msg.Body() != ""
		},
		process: r.handleText,
	})
}
