package kafka

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message is done and its offset may
// be committed. A non-nil return is retried; it never skips the message.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	commit  func(ctx context.Context, msgs ...kafka.Message) error
	workers int
	log     *zap.Logger

	// MinBackoff and MaxBackoff bound the wait between retries of one message.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r:          r,
		commit:     r.CommitMessages,
		workers:    workers,
		log:        log,
		MinBackoff: 200 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
	}
}

// Start fetches until ctx ends. Every partition belongs to one worker, so its
// messages are handled and committed in offset order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancel(ctx)
	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			for m := range q {
				if err := c.process(ctx, h, m); err != nil {
					// stopping; whatever is left stays uncommitted and is redelivered
					return
				}
			}
		}(queues[i])
	}
	defer func() {
		cancel()
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[partitionWorker(m, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// process retries h with capped exponential backoff until it succeeds, then
// commits. It returns only ctx's error.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	wait := c.MinBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		c.log.Warn("handler failed, retrying",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.MaxBackoff)
	}

	if err := c.commit(ctx, m); err != nil {
		// a later commit on the partition covers this offset
		c.log.Warn("commit failed",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		return ctx.Err()
	}
	return nil
}

func partitionWorker(m kafka.Message, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(m.Topic))
	return int((h.Sum32() + uint32(m.Partition)) % uint32(workers))
}
