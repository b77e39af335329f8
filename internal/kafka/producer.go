package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer queues messages on an inbox and writes them from one goroutine.
// Messages carry their own topic, so one writer serves every order topic.
// Publish never blocks: when the inbox is full or the producer is closed the
// message is dropped and logged.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *zap.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() { _ = p.w.Close() }()
		for {
			select {
			case <-ctx.Done():
				// flush whatever is already queued
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							return
						}
						p.write(m)
					default:
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write failed",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}

// Publish queues a message and reports whether it was accepted.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) bool {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(m, "producer closed")
		return false
	}
	select {
	case p.inbox <- m:
		return true
	default:
		p.drop(m, "inbox full")
		return false
	}
}

func (p *Producer) drop(m kafka.Message, reason string) {
	p.dropped.Add(1)
	p.log.Warn("kafka message dropped",
		zap.String("reason", reason),
		zap.String("topic", m.Topic),
		zap.ByteString("key", m.Key))
}

// Dropped counts messages refused by Publish.
func (p *Producer) Dropped() int64 { return p.dropped.Load() }

// PublishEvent implements orders.Publisher with the envelope v1 headers.
func (p *Producer) PublishEvent(topic, eventType string, key, value []byte) {
	p.Publish(topic, key, value,
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Close the inbox so the goroutine flushes the rest and exits. Safe to call
// more than once and concurrently with Publish.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the writer is closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
