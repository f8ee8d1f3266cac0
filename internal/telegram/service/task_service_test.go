package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task_bot/internal/clock"
	"task_bot/internal/telegram/models"
	"task_bot/internal/telegram/repository"
)

const testUser int64 = 1001

func newTestTaskService(t *testing.T) (*TaskServiceImpl, *memoryStore, *clock.Fake) {
	t.Helper()
	store := newMemoryStore()
	fake := clock.NewFake(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	svc := NewTaskService(store, fake)
	svc.Load(context.Background())
	return svc, store, fake
}

func TestTaskServiceAddRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Text)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)

	reloaded := NewTaskService(store, clock.NewFake(time.Now()))
	reloaded.Load(ctx)

	tasks := reloaded.Tasks(testUser)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Equal(t, "buy milk", tasks[0].Text)
}

func TestTaskServiceAddValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTaskService(t)

	if _, err := svc.Add(ctx, testUser, models.NewTask{Text: "   "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := svc.Add(ctx, 0, models.NewTask{Text: "x"}); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	assert.Empty(t, svc.Tasks(testUser))
}

func TestTaskServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, fake := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "write report"})
	require.NoError(t, err)

	fake.Advance(time.Minute)
	completed, err := svc.Complete(ctx, testUser, task.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.IsCompleted())
	assert.Equal(t, fake.Now(), *completed.CompletedAt)
	require.Len(t, svc.Tasks(testUser), 1)
	assert.Empty(t, svc.ArchivedTasks(testUser))

	again, err := svc.Complete(ctx, testUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, *completed.CompletedAt, *again.CompletedAt)

	archived, err := svc.Archive(ctx, testUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, archived.ID)
	assert.Empty(t, svc.Tasks(testUser))
	require.Len(t, svc.ArchivedTasks(testUser), 1)

	if _, err := svc.Task(testUser, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("archived task must leave the live set, got %v", err)
	}

	require.NoError(t, svc.DeleteArchived(ctx, testUser, task.ID))
	assert.Empty(t, svc.ArchivedTasks(testUser))
	if err := svc.DeleteArchived(ctx, testUser, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskServiceArchivePendingTaskFails(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "pending"})
	require.NoError(t, err)

	_, err = svc.Archive(ctx, testUser, task.ID)
	if !errors.Is(err, ErrTaskNotCompleted) {
		t.Fatalf("expected ErrTaskNotCompleted, got %v", err)
	}
	require.Len(t, svc.Tasks(testUser), 1)
	assert.Empty(t, svc.ArchivedTasks(testUser))
	assert.Equal(t, 0, store.saveCount(repository.CollectionArchivedTasks))
}

func TestTaskServiceIDsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTaskService(t)

	// 时钟不动，连续添加的 ID 仍需递增
	first, err := svc.Add(ctx, testUser, models.NewTask{Text: "a"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, testUser, models.NewTask{Text: "b"})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	require.NoError(t, svc.Delete(ctx, testUser, second.ID))
	third, err := svc.Add(ctx, testUser, models.NewTask{Text: "c"})
	require.NoError(t, err)
	assert.Greater(t, third.ID, second.ID, "deleted ids must not be reused")

	tasks := svc.Tasks(testUser)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Text)
	assert.Equal(t, "c", tasks[1].Text)
}

func TestTaskServiceSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "keep"})
	require.NoError(t, err)

	store.setSaveError(repository.CollectionTasks, errStoreDown)

	if _, err := svc.Add(ctx, testUser, models.NewTask{Text: "lost"}); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if _, err := svc.Complete(ctx, testUser, task.ID); err == nil {
		t.Fatal("expected complete to fail")
	}
	if err := svc.Delete(ctx, testUser, task.ID); err == nil {
		t.Fatal("expected delete to fail")
	}

	tasks := svc.Tasks(testUser)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
}

func TestTaskServiceArchiveRollsBackOnTaskSaveFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "done"})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, testUser, task.ID)
	require.NoError(t, err)

	store.setSaveError(repository.CollectionTasks, errStoreDown)
	_, err = svc.Archive(ctx, testUser, task.ID)
	require.Error(t, err)

	require.Len(t, svc.Tasks(testUser), 1)
	assert.Empty(t, svc.ArchivedTasks(testUser))

	store.setSaveError(repository.CollectionTasks, nil)
	reloaded := NewTaskService(store, clock.NewFake(time.Now()))
	reloaded.Load(ctx)
	require.Len(t, reloaded.Tasks(testUser), 1)
	assert.Empty(t, reloaded.ArchivedTasks(testUser))
}

func TestTaskServiceLoadDropsLiveDuplicatesOfArchived(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.data[repository.CollectionTasks] = []byte(`{"1001":[{"id":5,"text":"dup","status":"completed"},{"id":6,"text":"live","status":"pending"}]}`)
	store.data[repository.CollectionArchivedTasks] = []byte(`{"1001":[{"id":5,"text":"dup","status":"completed","archived_at":"2024-01-01T00:00:00Z"}]}`)

	svc := NewTaskService(store, clock.NewFake(time.UnixMilli(1)))
	svc.Load(ctx)

	tasks := svc.Tasks(testUser)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(6), tasks[0].ID)
	require.Len(t, svc.ArchivedTasks(testUser), 1)

	next, err := svc.Add(ctx, testUser, models.NewTask{Text: "after"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), next.ID)
}

func TestTaskServiceLoadCorruptData(t *testing.T) {
	store := newMemoryStore()
	store.data[repository.CollectionTasks] = []byte(`{not json`)
	store.failLoad[repository.CollectionArchivedTasks] = errStoreDown

	svc := NewTaskService(store, clock.NewFake(time.Now()))
	svc.Load(context.Background())

	assert.Empty(t, svc.Tasks(testUser))
	assert.Empty(t, svc.ArchivedTasks(testUser))

	_, err := svc.Add(context.Background(), testUser, models.NewTask{Text: "fresh"})
	require.NoError(t, err)
}

func TestTaskServiceEditText(t *testing.T) {
	ctx := context.Background()
	svc, _, fake := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "draft"})
	require.NoError(t, err)

	fake.Advance(time.Second)
	edited, err := svc.EditText(ctx, testUser, task.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Text)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "draft", edited.EditHistory[0].Text)
	assert.Equal(t, fake.Now(), edited.EditHistory[0].ChangedAt)

	same, err := svc.EditText(ctx, testUser, task.ID, "final")
	require.NoError(t, err)
	assert.Len(t, same.EditHistory, 1)

	if _, err := svc.EditText(ctx, testUser, task.ID, " "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := svc.EditText(ctx, testUser, 999, "x"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskServiceStats(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTaskService(t)

	assert.Equal(t, models.TaskStats{}, svc.Stats(testUser))

	var ids []int64
	for _, text := range []string{"a", "b", "c", "d"} {
		task, err := svc.Add(ctx, testUser, models.NewTask{Text: text})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err := svc.Complete(ctx, testUser, ids[0])
	require.NoError(t, err)

	stats := svc.Stats(testUser)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 3, stats.Pending)
	assert.InDelta(t, 25.0, stats.CompletionRate, 0.001)
}

func TestTaskServiceUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "mine"})
	require.NoError(t, err)

	if _, err := svc.Complete(ctx, 2002, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("other user must not see task, got %v", err)
	}
	assert.Empty(t, svc.Tasks(2002))
}

func TestTaskServiceReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTaskService(t)

	task, err := svc.Add(ctx, testUser, models.NewTask{Text: "original"})
	require.NoError(t, err)
	task.Text = "mutated"

	stored, err := svc.Task(testUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Text)
}

func TestTaskServiceFlush(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestTaskService(t)

	require.NoError(t, svc.Flush(ctx))
	assert.Equal(t, 1, store.saveCount(repository.CollectionTasks))
	assert.Equal(t, 1, store.saveCount(repository.CollectionArchivedTasks))

	store.setSaveError(repository.CollectionArchivedTasks, errStoreDown)
	require.Error(t, svc.Flush(ctx))
}
