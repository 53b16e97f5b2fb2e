package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ai-quiz-tutor/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKeyFinished is used for quiz finished events.
const RoutingKeyFinished = "quiz.finished"

// Publisher sends quiz events to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	// amqp channels must not be shared by concurrent publishers
	mu sync.Mutex
	ch *amqp.Channel
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishFinished publishes a quiz.finished event as JSON.
func (p *Publisher) PublishFinished(ctx context.Context, event domain.QuizFinished) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyFinished, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.SessionID,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
