package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// RecordHandler processes one consumed record.
type RecordHandler func(ctx context.Context, rec *kgo.Record) error

// fetcher is the slice of *kgo.Client the consumer uses.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

// Consumer polls a group-managed topic and commits after each batch.
// A record whose handler error is permanent is logged and skipped so one
// poison message cannot stall the partition. Any other error halts the
// batch uncommitted; the failed record and those after it are retried
// after a backoff before anything new is polled.
type Consumer struct {
	client  fetcher
	handle  RecordHandler
	skip    func(error) bool
	backoff time.Duration
	logger  *slog.Logger

	pending []*kgo.Record
}

const defaultBackoff = time.Second

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithSkip marks handler errors that will not succeed on redelivery.
// Without it every handler error is retried.
func WithSkip(skip func(error) bool) ConsumerOption {
	return func(c *Consumer) {
		if skip != nil {
			c.skip = skip
		}
	}
}

// WithBackoff sets the pause after a failed poll or a halted batch.
func WithBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// NewConsumerClient joins group on topic with manual commits, starting from
// the earliest offset when the group has none.
func NewConsumerClient(brokers []string, group, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if group == "" || topic == "" {
		return nil, errors.New("kafka consumer group and topic are required")
	}
	base := []kgo.Opt{
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	return NewClient(brokers, append(base, opts...)...)
}

func NewConsumer(client fetcher, handle RecordHandler, logger *slog.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if handle == nil {
		return nil, errors.New("record handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		client:  client,
		handle:  handle,
		skip:    func(error) bool { return false },
		backoff: defaultBackoff,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run consumes until ctx is cancelled or the client is closed, pausing for
// the backoff after every failure.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		_, err := c.PollOnce(ctx)
		if ctx.Err() != nil || errors.Is(err, kgo.ErrClientClosed) {
			return nil
		}
		if err == nil {
			continue
		}
		c.logger.ErrorContext(ctx, "kafka consume failed", "error", err, "retry_in", c.backoff)
		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// PollOnce handles one batch and commits its offsets. A batch halted by a
// retryable handler error is kept and handled again by the next call instead
// of polling. It returns how many records were handled successfully.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	records := c.pending
	c.pending = nil
	if len(records) == 0 {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return 0, kgo.ErrClientClosed
		}
		var ctxErr, fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				ctxErr = err
				return
			}
			c.logger.WarnContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
			if fetchErr == nil {
				fetchErr = fmt.Errorf("fetch %s/%d: %w", topic, partition, err)
			}
		})
		if ctxErr != nil {
			return 0, ctxErr
		}
		records = fetches.Records()
		if len(records) == 0 {
			return 0, fetchErr
		}
	}

	handled := 0
	for i, rec := range records {
		err := c.handle(ctx, rec)
		if err == nil {
			handled++
			continue
		}
		if c.skip(err) {
			c.logger.ErrorContext(ctx, "skipping kafka record",
				"topic", rec.Topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
				"error", err,
			)
			continue
		}
		c.pending = records[i:]
		return handled, fmt.Errorf("handle record %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
	}
	if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
		return handled, fmt.Errorf("commit offsets: %w", err)
	}
	return handled, nil
}
