package inmemory

import (
	"context"
	"crmTasks/internal/clock"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mtx   sync.Mutex
	fired []uuid.UUID
}

func (r *recorder) fire(ctx context.Context, taskID uuid.UUID) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.fired = append(r.fired, taskID)
}

func (r *recorder) count(id uuid.UUID) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	n := 0
	for _, f := range r.fired {
		if f == id {
			n++
		}
	}
	return n
}

func startedStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	store := New(clock.Real{})
	rec := &recorder{}
	require.NoError(t, store.Start(context.Background(), rec.fire))
	t.Cleanup(store.Stop)
	return store, rec
}

func TestStore_FiresOnceAndRemovesJob(t *testing.T) {
	store, rec := startedStore(t)
	id := uuid.New()

	require.NoError(t, store.Put(context.Background(), id, time.Now().Add(30*time.Millisecond)))
	_, pending := store.Get(id)
	assert.True(t, pending)

	assert.Eventually(t, func() bool { return rec.count(id) == 1 }, time.Second, 5*time.Millisecond)

	_, pending = store.Get(id)
	assert.False(t, pending)
	assert.Equal(t, 0, store.Len())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count(id))
}

func TestStore_PutReplacesExistingJob(t *testing.T) {
	store, rec := startedStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, time.Now().Add(40*time.Millisecond)))
	later := time.Now().Add(time.Hour)
	require.NoError(t, store.Put(ctx, id, later))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count(id))

	at, pending := store.Get(id)
	require.True(t, pending)
	assert.Equal(t, later, at)
	assert.Equal(t, 1, store.Len())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	store, rec := startedStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, time.Now().Add(30*time.Millisecond)))
	require.NoError(t, store.Remove(ctx, id))
	require.NoError(t, store.Remove(ctx, id))
	require.NoError(t, store.Remove(ctx, uuid.New()))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, rec.count(id))
	assert.Equal(t, 0, store.Len())
}

func TestStore_PastDueJobsFireOnStart(t *testing.T) {
	store := New(clock.Real{})
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, time.Now().Add(-time.Hour)))

	rec := &recorder{}
	require.NoError(t, store.Start(ctx, rec.fire))
	defer store.Stop()

	assert.Eventually(t, func() bool { return rec.count(id) == 1 }, time.Second, 5*time.Millisecond)
}

func TestStore_StartTwiceFails(t *testing.T) {
	store, rec := startedStore(t)
	assert.Error(t, store.Start(context.Background(), rec.fire))
}

func TestStore_RemoveWaitsForInFlightFire(t *testing.T) {
	store := New(clock.Real{})
	ctx := context.Background()
	id := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	require.NoError(t, store.Start(ctx, func(ctx context.Context, taskID uuid.UUID) {
		calls.Add(1)
		close(entered)
		<-release
	}))
	defer store.Stop()

	require.NoError(t, store.Put(ctx, id, time.Now()))
	<-entered

	removed := make(chan struct{})
	go func() {
		_ = store.Remove(ctx, id)
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("remove returned while the job was still firing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-removed
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestStore_RemoveBeforeFireSkipsCallback(t *testing.T) {
	store, rec := startedStore(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, store.Put(ctx, ids[i], time.Now().Add(20*time.Millisecond)))
	}
	for i := 0; i < len(ids); i += 2 {
		require.NoError(t, store.Remove(ctx, ids[i]))
	}

	time.Sleep(120 * time.Millisecond)
	for i, id := range ids {
		if i%2 == 0 {
			assert.Equal(t, 0, rec.count(id))
		} else {
			assert.Equal(t, 1, rec.count(id))
		}
	}
	assert.Equal(t, 0, store.locks.size())
}

func TestStore_StopKeepsPendingJobs(t *testing.T) {
	store := New(clock.Real{})
	ctx := context.Background()
	rec := &recorder{}
	require.NoError(t, store.Start(ctx, rec.fire))

	id := uuid.New()
	require.NoError(t, store.Put(ctx, id, time.Now().Add(30*time.Millisecond)))
	store.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count(id))
	_, pending := store.Get(id)
	assert.True(t, pending)
}

func TestStore_RestartArmsPendingJobs(t *testing.T) {
	store := New(clock.Real{})
	ctx := context.Background()
	first := &recorder{}
	require.NoError(t, store.Start(ctx, first.fire))

	id := uuid.New()
	require.NoError(t, store.Put(ctx, id, time.Now().Add(30*time.Millisecond)))
	store.Stop()

	second := &recorder{}
	require.NoError(t, store.Start(ctx, second.fire))
	t.Cleanup(store.Stop)

	require.Eventually(t, func() bool { return second.count(id) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, first.count(id))
	assert.Equal(t, 0, store.Len())
}
