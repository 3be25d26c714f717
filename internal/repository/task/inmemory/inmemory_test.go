package inmemory_test

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/models/task"
	"crmTasks/internal/repository"
	"crmTasks/internal/repository/task/inmemory"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func newStorage() (*inmemory.TaskStorage, *clock.Manual) {
	clk := clock.NewManual(base)
	return inmemory.NewTaskStorage(clk), clk
}

// TestTaskStorage_HealthCheck checks the in-memory store always reports healthy
func TestTaskStorage_HealthCheck(t *testing.T) {
	storage, _ := newStorage()
	assert.NoError(t, storage.HealthCheck(context.Background()))
}

func TestTaskStorage_SaveInsert(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Renew passport"))
	require.NoError(t, storage.Save(ctx, toSave))

	assert.Equal(t, base, toSave.CreatedAt)
	assert.Equal(t, base, toSave.UpdatedAt)
	assert.Equal(t, 1, toSave.Version)

	got, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Renew passport", got.Title)
	assert.Equal(t, task.StatusOpen, got.Status)
}

func TestTaskStorage_SaveUpdate(t *testing.T) {
	ctx := context.Background()
	storage, clk := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Original"))
	require.NoError(t, storage.Save(ctx, toSave))

	clk.Advance(time.Minute)
	toSave.Title = "Updated"
	require.NoError(t, storage.Save(ctx, toSave))

	got, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt)
	assert.Equal(t, 2, got.Version)
}

func TestTaskStorage_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Task"))
	require.NoError(t, storage.Save(ctx, toSave))

	stale, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)

	require.NoError(t, storage.Save(ctx, toSave))

	stale.Title = "stale write"
	err = storage.Save(ctx, stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestTaskStorage_GetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Task"))
	require.NoError(t, storage.Save(ctx, toSave))

	got, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)
	got.Title = "mutated outside"

	again, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Task", again.Title)
}

func TestTaskStorage_GetByIDNotFound(t *testing.T) {
	storage, _ := newStorage()

	_, err := storage.GetByID(context.Background(), uuid.New())
	assert.Equal(t, repository.ErrNotFound, err)
}

func TestTaskStorage_DeleteByID(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Task"))
	require.NoError(t, storage.Save(ctx, toSave))

	require.NoError(t, storage.DeleteByID(ctx, toSave.UUID))

	_, err := storage.GetByID(ctx, toSave.UUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := storage.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, storage.DeleteByID(ctx, toSave.UUID), repository.ErrNotFound)
}

func TestTaskStorage_MarkCompletedNow(t *testing.T) {
	ctx := context.Background()
	storage, clk := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Task"), task.WithStatus(task.StatusCompleted))
	require.NoError(t, storage.Save(ctx, toSave))

	stampAt := clk.Advance(5 * time.Second)
	stamped, err := storage.MarkCompletedNow(ctx, toSave.UUID)
	require.NoError(t, err)
	assert.Equal(t, stampAt, stamped)

	got, err := storage.GetByID(ctx, toSave.UUID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, stampAt, *got.CompletedAt)
	assert.Equal(t, toSave.Version, got.Version)

	_, err = storage.MarkCompletedNow(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTaskStorage_GetAllByCustomerID(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	customerA := uuid.New()
	customerB := uuid.New()

	for i, c := range []*uuid.UUID{&customerA, &customerB, &customerA, nil} {
		tk := task.New(uuid.New(), task.WithTitle(fmt.Sprintf("Task %d", i)), task.WithCustomer(c))
		require.NoError(t, storage.Save(ctx, tk))
	}

	tasks, err := storage.GetAllByCustomerID(ctx, customerA)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Task 0", tasks[0].Title)
	assert.Equal(t, "Task 2", tasks[1].Title)

	none, err := storage.GetAllByCustomerID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTaskStorage_SaveAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	first := task.New(uuid.New(), task.WithTitle("first"))
	second := task.New(uuid.New(), task.WithTitle("second"))
	require.NoError(t, storage.Save(ctx, first))
	require.NoError(t, storage.Save(ctx, second))

	first.Title = "first updated"
	stale := second.Clone()
	stale.Version = 42
	stale.Title = "second updated"

	err := storage.SaveAll(ctx, []*task.Task{first, stale})
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	got, err := storage.GetByID(ctx, first.UUID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	require.NoError(t, storage.SaveAll(ctx, []*task.Task{first, second}))
	got, err = storage.GetByID(ctx, first.UUID)
	require.NoError(t, err)
	assert.Equal(t, "first updated", got.Title)
}

// TestTaskStorage_ConcurrentSaves runs saves from many goroutines
func TestTaskStorage_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk := task.New(uuid.New(), task.WithTitle(fmt.Sprintf("Task %d", i)))
			assert.NoError(t, storage.Save(ctx, tk))
		}(i)
	}
	wg.Wait()

	all, err := storage.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestTaskStorage_SaveDoesNotResurrectDeleted(t *testing.T) {
	ctx := context.Background()
	storage, _ := newStorage()

	toSave := task.New(uuid.New(), task.WithTitle("Task"))
	require.NoError(t, storage.Save(ctx, toSave))
	require.NoError(t, storage.DeleteByID(ctx, toSave.UUID))

	toSave.Title = "Late update"
	assert.ErrorIs(t, storage.Save(ctx, toSave), repository.ErrNotFound)
	assert.ErrorIs(t, storage.SaveAll(ctx, []*task.Task{toSave}), repository.ErrNotFound)

	_, err := storage.GetByID(ctx, toSave.UUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
