package notification

import (
	"context"
	"crmTasks/internal/logger"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	DefaultSubject = "crm.reminders"
	flushTimeout   = 5 * time.Second
)

// NATSSender publishes reminders as JSON on a NATS subject.
type NATSSender struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSender(url, subject string) (*NATSSender, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("crm-tasks"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("Notification: connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return &NATSSender{nc: nc, subject: subject}, nil
}

func (s *NATSSender) Send(ctx context.Context, r Reminder) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.nc.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush reminder: %w", err)
	}
	return nil
}

func (s *NATSSender) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
