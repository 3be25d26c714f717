package notification_test

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	"crmTasks/internal/notification"
	customerrepo "crmTasks/internal/repository/customer/inmemory"
	taskrepo "crmTasks/internal/repository/task/inmemory"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []notification.Reminder
	err  error
}

func (c *captureSender) Send(ctx context.Context, r notification.Reminder) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, r)
	return nil
}

var now = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*taskrepo.TaskStorage, *customerrepo.CustomerStorage, *captureSender, *notification.Service) {
	t.Helper()
	clk := clock.NewManual(now)
	tasks := taskrepo.NewTaskStorage(clk)
	customers := customerrepo.NewCustomerStorage(clk)
	sender := &captureSender{}
	return tasks, customers, sender, notification.NewService(tasks, customers, sender, clk)
}

func TestService_DispatchWithCustomer(t *testing.T) {
	ctx := context.Background()
	tasks, customers, sender, svc := setup(t)

	c := &customer.Customer{UUID: uuid.New(), Name: "Jane Roe", Email: "jane@example.com"}
	require.NoError(t, customers.Create(ctx, c))

	remindAt := now
	tk := task.New(uuid.New(),
		task.WithTitle("Renew passport"),
		task.WithReminder(&remindAt),
		task.WithCustomer(&c.UUID),
	)
	require.NoError(t, tasks.Save(ctx, tk))

	require.NoError(t, svc.Dispatch(ctx, tk.UUID))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, tk.UUID, msg.TaskID)
	assert.Equal(t, "Renew passport", msg.Title)
	assert.Equal(t, "OPEN", msg.Status)
	assert.True(t, now.Equal(msg.SentAt))
	require.NotNil(t, msg.Customer)
	assert.Equal(t, "Jane Roe", msg.Customer.Name)
}

func TestService_DispatchCustomerGone(t *testing.T) {
	ctx := context.Background()
	tasks, _, sender, svc := setup(t)

	missing := uuid.New()
	tk := task.New(uuid.New(), task.WithTitle("Call"), task.WithCustomer(&missing))
	require.NoError(t, tasks.Save(ctx, tk))

	require.NoError(t, svc.Dispatch(ctx, tk.UUID))
	require.Len(t, sender.sent, 1)
	assert.Nil(t, sender.sent[0].Customer)
}

func TestService_DispatchErrors(t *testing.T) {
	ctx := context.Background()
	tasks, _, sender, svc := setup(t)

	assert.Error(t, svc.Dispatch(ctx, uuid.New()))

	tk := task.New(uuid.New(), task.WithTitle("Call"))
	require.NoError(t, tasks.Save(ctx, tk))
	sender.err = errors.New("broker down")

	assert.ErrorIs(t, svc.Dispatch(ctx, tk.UUID), sender.err)
}

func TestLogSender(t *testing.T) {
	remindAt := now
	assert.NoError(t, notification.LogSender{}.Send(context.Background(), notification.Reminder{
		TaskID:   uuid.New(),
		Title:    "x",
		RemindAt: &remindAt,
		Customer: &notification.Recipient{ID: uuid.New(), Name: "y"},
	}))
}
