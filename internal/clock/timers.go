package clock

import (
	"sync"
	"time"
)

// KeyedTimers 按 key 管理的延迟任务
//
// Schedule 为固定截止时间：同一 key 已有待执行任务时不会重新计时；
// Reset 为滑动窗口：每次调用都会取消旧任务并重新计时。
type KeyedTimers struct {
	clock  Clock
	mu     sync.Mutex
	timers map[string]*keyedEntry
	seq    uint64
}

type keyedEntry struct {
	timer Timer
	seq   uint64
}

// NewKeyedTimers 创建延迟任务管理器
func NewKeyedTimers(c Clock) *KeyedTimers {
	if c == nil {
		c = New()
	}
	return &KeyedTimers{
		clock:  c,
		timers: make(map[string]*keyedEntry),
	}
}

// Schedule 若 key 没有待执行任务，则在 d 之后执行 fn，返回是否新建了任务
func (k *KeyedTimers) Schedule(key string, d time.Duration, fn func()) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.timers[key]; exists {
		return false
	}
	k.armLocked(key, d, fn)
	return true
}

// Reset 取消 key 的旧任务并在 d 之后执行 fn
func (k *KeyedTimers) Reset(key string, d time.Duration, fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if entry, exists := k.timers[key]; exists {
		entry.timer.Stop()
		delete(k.timers, key)
	}
	k.armLocked(key, d, fn)
}

// Cancel 取消 key 的待执行任务
func (k *KeyedTimers) Cancel(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, exists := k.timers[key]
	if !exists {
		return false
	}
	entry.timer.Stop()
	delete(k.timers, key)
	return true
}

// Pending key 是否有待执行任务
func (k *KeyedTimers) Pending(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, exists := k.timers[key]
	return exists
}

// Stop 取消全部任务
func (k *KeyedTimers) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, entry := range k.timers {
		entry.timer.Stop()
		delete(k.timers, key)
	}
}

func (k *KeyedTimers) armLocked(key string, d time.Duration, fn func()) {
	k.seq++
	seq := k.seq
	entry := &keyedEntry{seq: seq}
	entry.timer = k.clock.AfterFunc(d, func() {
		k.mu.Lock()
		current, exists := k.timers[key]
		if !exists || current.seq != seq {
			k.mu.Unlock()
			return
		}
		delete(k.timers, key)
		k.mu.Unlock()

		fn()
	})
	k.timers[key] = entry
}
