package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/natours-api/internal/config"
)

// Outbox appends rendered messages to a file.  SMTP delivery is out of
// scope; whatever relays mail tails this file.
type Outbox struct {
	Path string
}

// Write appends one message.
func (o Outbox) Write(m PasswordResetMail) error {
	if err := os.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir outbox: %w", err)
	}
	f, err := os.OpenFile(o.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	msg := fmt.Sprintf("[%s] From: %s | To: %q <%s> | Subject: %s | Expires: %s\n%s\n\n",
		time.Now().UTC().Format(time.RFC3339), m.From, m.Name, m.To, m.Subject,
		m.ExpiresAt.UTC().Format(time.RFC3339), m.Body())
	if _, err := f.WriteString(msg); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// HandleDelivery decodes one delivery body and writes it to the outbox.
func (o Outbox) HandleDelivery(body []byte) error {
	var m PasswordResetMail
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if m.To == "" || m.ResetURL == "" {
		return errors.New("mail event without recipient or link")
	}
	return o.Write(m)
}

// StartMailConsumer connects to RabbitMQ, declares the mail queue and
// consumes until ctx is cancelled.  Broker failures trigger a reconnect
// with exponential backoff capped at 30s.
func StartMailConsumer(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) error {
	outbox := Outbox{Path: cfg.OutboxPath}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Warn("mail-consumer: dial broker failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg.Queue, outbox, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("mail-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, outbox Outbox, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("mail-consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := outbox.HandleDelivery(d.Body); err != nil {
				logger.Error("mail-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
