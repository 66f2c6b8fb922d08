package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/queue"
)

// MailPublisher hands password reset mail to RabbitMQ.  The connection is
// dialled lazily and re-dialled after failures; publishes are retried with
// exponential backoff and short-circuited while the broker keeps failing.
type MailPublisher struct {
	cfg     config.MailConfig
	logger  *slog.Logger
	retrier retry.Retry[struct{}]
	breaker circuitbreaker.CircuitBreaker[struct{}]

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMailPublisher(cfg config.MailConfig, logger *slog.Logger) *MailPublisher {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	p := &MailPublisher{cfg: cfg, logger: logger}
	p.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	})
	p.breaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("mail publisher breaker changed state", "from", from.String(), "to", to.String())
		},
	})
	return p
}

// SendPasswordReset publishes the message as a persistent delivery.
func (p *MailPublisher) SendPasswordReset(ctx context.Context, m queue.PasswordResetMail) error {
	if m.From == "" {
		m.From = p.cfg.From
	}
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return p.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.publish(ctx, body)
		})
	})
	if err != nil {
		p.logger.Error("rabbitmq: publish password reset failed", "to", m.To, "err", err)
	}
	return err
}

func (p *MailPublisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx,
		"",          // default exchange
		p.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.reset()
	}
	return err
}

// channel returns an open channel with the mail queue declared, dialling
// when needed.
func (p *MailPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.cfg.RabbitURL)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *MailPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// Close releases the broker connection.
func (p *MailPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
