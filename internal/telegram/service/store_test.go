package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore 内存快照存储，按集合名注入写入失败
type memoryStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSave map[string]error
	failLoad map[string]error
	saves    map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:     make(map[string][]byte),
		failSave: make(map[string]error),
		failLoad: make(map[string]error),
		saves:    make(map[string]int),
	}
}

func (m *memoryStore) Load(_ context.Context, name string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failLoad[name]; err != nil {
		return false, err
	}
	raw, ok := m.data[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) Save(_ context.Context, name string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failSave[name]; err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[name] = raw
	m.saves[name]++
	return nil
}

func (m *memoryStore) Close(context.Context) error {
	return nil
}

func (m *memoryStore) setSaveError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failSave, name)
		return
	}
	m.failSave[name] = err
}

func (m *memoryStore) saveCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[name]
}
