package telegram

import (
	"sync"
	"time"

	"task_bot/internal/clock"
	"task_bot/internal/logger"
)

// sessionSweeps 需要定期清理的会话状态
type sessionSweeps interface {
	SweepAttachments() int
	SweepMediaGroups() int
}

// sessionSweeper 按固定间隔清理过期会话，由 clock 驱动
type sessionSweeper struct {
	target          sessionSweeps
	clock           clock.Clock
	attachmentEvery time.Duration
	mediaGroupEvery time.Duration

	mu          sync.Mutex
	running     bool
	attachments clock.Timer
	mediaGroups clock.Timer
}

func newSessionSweeper(target sessionSweeps, c clock.Clock, attachmentEvery, mediaGroupEvery time.Duration) *sessionSweeper {
	if c == nil {
		c = clock.New()
	}
	if attachmentEvery <= 0 {
		attachmentEvery = 10 * time.Minute
	}
	if mediaGroupEvery <= 0 {
		mediaGroupEvery = 5 * time.Minute
	}
	return &sessionSweeper{
		target:          target,
		clock:           c,
		attachmentEvery: attachmentEvery,
		mediaGroupEvery: mediaGroupEvery,
	}
}

func (s *sessionSweeper) start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.armLocked(&s.attachments, s.attachmentEvery, s.sweepAttachments)
	s.armLocked(&s.mediaGroups, s.mediaGroupEvery, s.sweepMediaGroups)
	logger.L().Infof("Session sweeper started: attachments_every=%s, media_groups_every=%s", s.attachmentEvery, s.mediaGroupEvery)
}

// stop 取消后续清理；正在执行的一次清理会完成，但不会再重新计时
func (s *sessionSweeper) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.running = false
	s.attachments.Stop()
	s.mediaGroups.Stop()
	logger.L().Info("Session sweeper stopped")
}

// armLocked 在 every 之后执行一次 sweep，执行完重新计时并写回 slot
func (s *sessionSweeper) armLocked(slot *clock.Timer, every time.Duration, sweep func()) {
	*slot = s.clock.AfterFunc(every, func() {
		sweep()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running {
			s.armLocked(slot, every, sweep)
		}
	})
}

func (s *sessionSweeper) sweepAttachments() {
	if n := s.target.SweepAttachments(); n > 0 {
		logger.L().Infof("Attachment sweep evicted %d session(s)", n)
	}
}

func (s *sessionSweeper) sweepMediaGroups() {
	if n := s.target.SweepMediaGroups(); n > 0 {
		logger.L().Infof("Media group sweep evicted %d entr(ies)", n)
	}
}
