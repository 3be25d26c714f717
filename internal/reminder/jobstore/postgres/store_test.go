package postgres_test

import (
	"context"
	"crmTasks/internal/migrations"
	"crmTasks/internal/reminder"
	"crmTasks/internal/reminder/jobstore/postgres"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type JobStoreTestSuite struct {
	suite.Suite
	container testcontainers.Container
	pool      *pgxpool.Pool
	ctx       context.Context

	store *postgres.Store
	mtx   sync.Mutex
	fired []uuid.UUID
}

func TestJobStoreTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}
	suite.Run(t, new(JobStoreTestSuite))
}

func (s *JobStoreTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	require.NoError(s.T(), migrations.Up(connString))

	s.pool, err = pgxpool.New(s.ctx, connString)
	require.NoError(s.T(), err)
}

func (s *JobStoreTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *JobStoreTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "DELETE FROM reminder_jobs")
	require.NoError(s.T(), err)

	s.fired = nil
	s.store = postgres.New(s.pool)
	require.NoError(s.T(), s.store.Start(s.ctx, s.record))
}

func (s *JobStoreTestSuite) record(ctx context.Context, taskID uuid.UUID) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.fired = append(s.fired, taskID)
}

func (s *JobStoreTestSuite) firedIDs() []uuid.UUID {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]uuid.UUID(nil), s.fired...)
}

func (s *JobStoreTestSuite) TestPutUpserts() {
	id := uuid.New()
	first := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	second := first.Add(time.Hour)

	require.NoError(s.T(), s.store.Put(s.ctx, id, first))
	require.NoError(s.T(), s.store.Put(s.ctx, id, second))

	at, ok, err := s.store.Get(s.ctx, id)
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.True(s.T(), second.Equal(at))

	var count int
	require.NoError(s.T(), s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM reminder_jobs").Scan(&count))
	assert.Equal(s.T(), 1, count)
}

func (s *JobStoreTestSuite) TestRemoveIsIdempotent() {
	id := uuid.New()
	require.NoError(s.T(), s.store.Put(s.ctx, id, time.Now().Add(time.Hour)))

	require.NoError(s.T(), s.store.Remove(s.ctx, id))
	require.NoError(s.T(), s.store.Remove(s.ctx, id))

	_, ok, err := s.store.Get(s.ctx, id)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *JobStoreTestSuite) TestFireDueFiresOnlyDueJobsOnce() {
	due := uuid.New()
	missed := uuid.New()
	future := uuid.New()

	require.NoError(s.T(), s.store.Put(s.ctx, due, time.Now().Add(-time.Second)))
	require.NoError(s.T(), s.store.Put(s.ctx, missed, time.Now().Add(-24*time.Hour)))
	require.NoError(s.T(), s.store.Put(s.ctx, future, time.Now().Add(time.Hour)))

	n, err := s.store.FireDue(s.ctx, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)
	assert.Equal(s.T(), []uuid.UUID{missed, due}, s.firedIDs())

	n, err = s.store.FireDue(s.ctx, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, n)

	_, ok, err := s.store.Get(s.ctx, future)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *JobStoreTestSuite) TestFireDueRespectsLimit() {
	for i := 0; i < 3; i++ {
		require.NoError(s.T(), s.store.Put(s.ctx, uuid.New(), time.Now().Add(-time.Minute)))
	}

	n, err := s.store.FireDue(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)

	n, err = s.store.FireDue(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)
}

func (s *JobStoreTestSuite) TestRemovedJobNeverFires() {
	id := uuid.New()
	require.NoError(s.T(), s.store.Put(s.ctx, id, time.Now().Add(-time.Second)))
	require.NoError(s.T(), s.store.Remove(s.ctx, id))

	n, err := s.store.FireDue(s.ctx, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, n)
	assert.Empty(s.T(), s.firedIDs())
}

func (s *JobStoreTestSuite) TestFireDueBeforeStart() {
	store := postgres.New(s.pool)
	_, err := store.FireDue(s.ctx, 1)
	assert.ErrorIs(s.T(), err, reminder.ErrNotStarted)
}
