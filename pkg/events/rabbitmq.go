package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nepway/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	rabbitMaxRetries    = 5
	rabbitRetryInterval = 2 * time.Second
)

// RabbitPublisher publishes events to a durable topic exchange using the
// event type as routing key. It reconnects when the broker drops the
// connection.
type RabbitPublisher struct {
	url      string
	exchange string
	logger   *logger.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	notifyClose chan *amqp.Error
	done        chan struct{}
}

func NewRabbitPublisher(url, exchange string, log *logger.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{
		url:      url,
		exchange: exchange,
		logger:   log.WithField("component", "rabbitmq"),
		done:     make(chan struct{}),
	}

	var err error
	for i := 0; i < rabbitMaxRetries; i++ {
		if err = p.connect(); err == nil {
			go p.reconnectLoop()
			return p, nil
		}
		p.logger.WithError(err).Warnf("RabbitMQ connect attempt %d/%d failed", i+1, rabbitMaxRetries)
		time.Sleep(rabbitRetryInterval)
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d retries: %w", rabbitMaxRetries, err)
}

func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.notifyClose = make(chan *amqp.Error, 1)
	conn.NotifyClose(p.notifyClose)
	p.mu.Unlock()

	return nil
}

func (p *RabbitPublisher) reconnectLoop() {
	for {
		p.mu.RLock()
		notify := p.notifyClose
		p.mu.RUnlock()

		select {
		case <-p.done:
			return
		case amqpErr, ok := <-notify:
			if !ok || amqpErr == nil {
				return
			}
			p.logger.WithError(amqpErr).Warn("RabbitMQ connection lost")

			backoff := time.Second
			for {
				select {
				case <-p.done:
					return
				case <-time.After(backoff):
				}
				if err := p.connect(); err != nil {
					p.logger.WithError(err).Warn("RabbitMQ reconnect failed")
					if backoff *= 2; backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					continue
				}
				p.logger.Info("RabbitMQ connection re-established")
				break
			}
		}
	}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq channel not available")
	}

	return ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

func (p *RabbitPublisher) Close() error {
	close(p.done)

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
