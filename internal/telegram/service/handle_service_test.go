package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task_bot/internal/clock"
	"task_bot/internal/telegram/repository"
)

func TestHandleServiceRecordAndResolve(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewHandleService(store, clock.NewFake(time.Now()))
	svc.Load(ctx)

	require.NoError(t, svc.Record(ctx, 42, "@Alice"))

	id, err := svc.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = svc.Resolve("@ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	if _, err := svc.Resolve("@bob"); !errors.Is(err, ErrHandleNotFound) {
		t.Fatalf("expected ErrHandleNotFound, got %v", err)
	}
}

func TestHandleServiceSkipsUnchangedHandle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewHandleService(store, clock.NewFake(time.Now()))

	require.NoError(t, svc.Record(ctx, 42, "alice"))
	require.NoError(t, svc.Record(ctx, 42, "@alice"))
	require.NoError(t, svc.Record(ctx, 42, ""))
	assert.Equal(t, 1, store.saveCount(repository.CollectionUserHandles))
}

func TestHandleServiceHandleMovesToNewOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewHandleService(store, clock.NewFake(time.Now()))

	require.NoError(t, svc.Record(ctx, 1, "shared"))
	require.NoError(t, svc.Record(ctx, 2, "shared"))

	id, err := svc.Resolve("shared")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestHandleServicePersistsAcrossLoad(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	first := NewHandleService(store, clock.NewFake(time.Now()))
	require.NoError(t, first.Record(ctx, 7, "carol"))

	second := NewHandleService(store, clock.NewFake(time.Now()))
	second.Load(ctx)
	id, err := second.Resolve("carol")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestHandleServiceRecordFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.setSaveError(repository.CollectionUserHandles, errStoreDown)
	svc := NewHandleService(store, clock.NewFake(time.Now()))

	if err := svc.Record(ctx, 7, "dave"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := svc.Resolve("dave"); !errors.Is(err, ErrHandleNotFound) {
		t.Fatalf("failed record must not be visible, got %v", err)
	}
	if err := svc.Record(ctx, 0, "x"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}
