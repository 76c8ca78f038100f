package kafka

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "bloodbank/pkg/domain-errors"
)

type scriptedFetcher struct {
	polls     []kgo.Fetches
	commits   int
	commitErr error
}

func (f *scriptedFetcher) PollFetches(context.Context) kgo.Fetches {
	if len(f.polls) == 0 {
		return kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Partitions: []kgo.FetchPartition{{Partition: -1, Err: kgo.ErrClientClosed}},
		}}}}
	}
	next := f.polls[0]
	f.polls = f.polls[1:]
	return next
}

func (f *scriptedFetcher) CommitUncommittedOffsets(context.Context) error {
	f.commits++
	return f.commitErr
}

func fetchOf(values ...string) kgo.Fetches {
	records := make([]*kgo.Record, len(values))
	for i, v := range values {
		records[i] = &kgo.Record{Topic: "donations", Offset: int64(i), Value: []byte(v)}
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "donations",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
	}}}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

var errUndecodable = errors.New("undecodable")

func skipUndecodable(err error) bool { return errors.Is(err, errUndecodable) }

func TestPollOnceSkipsPermanentFailuresAndCommits(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("ok", "poison", "ok")}}
	var seen []string
	c, err := NewConsumer(fetcher, func(_ context.Context, rec *kgo.Record) error {
		seen = append(seen, string(rec.Value))
		if string(rec.Value) == "poison" {
			return fmt.Errorf("decode: %w", errUndecodable)
		}
		return nil
	}, quietLogger(), WithSkip(skipUndecodable))
	require.NoError(t, err)

	handled, err := c.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []string{"ok", "poison", "ok"}, seen)
	assert.Equal(t, 1, fetcher.commits)
}

func TestPollOnceHaltsOnTransientFailureWithoutCommitting(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("a", "b", "c")}}
	var seen []string
	outage := true
	c, err := NewConsumer(fetcher, func(_ context.Context, rec *kgo.Record) error {
		seen = append(seen, string(rec.Value))
		if string(rec.Value) == "b" && outage {
			return dErrors.New(dErrors.CodeInternal, "store unavailable")
		}
		return nil
	}, quietLogger(), WithSkip(skipUndecodable))
	require.NoError(t, err)

	handled, err := c.PollOnce(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Equal(t, 1, handled)
	assert.Zero(t, fetcher.commits, "offsets stay uncommitted while a record is unhandled")

	outage = false
	handled, err = c.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []string{"a", "b", "b", "c"}, seen)
	assert.Equal(t, 1, fetcher.commits)
}

func TestPollOnceReportsFetchErrors(t *testing.T) {
	failed := kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "donations",
		Partitions: []kgo.FetchPartition{{Partition: 0, Err: errors.New("broker unreachable")}},
	}}}}
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{failed}}
	c, err := NewConsumer(fetcher, func(context.Context, *kgo.Record) error { return nil }, quietLogger())
	require.NoError(t, err)

	_, err = c.PollOnce(context.Background())
	assert.ErrorContains(t, err, "broker unreachable")
	assert.Zero(t, fetcher.commits)
}

func TestPollOnceReportsCommitFailure(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("ok")}, commitErr: errors.New("coordinator moved")}
	c, err := NewConsumer(fetcher, func(context.Context, *kgo.Record) error { return nil }, quietLogger())
	require.NoError(t, err)

	_, err = c.PollOnce(context.Background())
	assert.ErrorContains(t, err, "commit offsets")
}

func TestRunStopsWhenClientCloses(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("a"), fetchOf("b")}}
	count := 0
	c, err := NewConsumer(fetcher, func(context.Context, *kgo.Record) error {
		count++
		return nil
	}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, fetcher.commits)
}

func TestRunBacksOffBeforeRetrying(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("a")}}
	var attempts []time.Time
	c, err := NewConsumer(fetcher, func(context.Context, *kgo.Record) error {
		attempts = append(attempts, time.Now())
		if len(attempts) == 1 {
			return errors.New("store unavailable")
		}
		return nil
	}, quietLogger(), WithBackoff(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, attempts, 2)
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 20*time.Millisecond)
	assert.Equal(t, 1, fetcher.commits)
}

func TestRunStopsDuringBackoff(t *testing.T) {
	fetcher := &scriptedFetcher{polls: []kgo.Fetches{fetchOf("a")}}
	failed := make(chan struct{}, 1)
	c, err := NewConsumer(fetcher, func(context.Context, *kgo.Record) error {
		failed <- struct{}{}
		return errors.New("store unavailable")
	}, quietLogger(), WithBackoff(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-failed
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop while backing off")
	}
	assert.Zero(t, fetcher.commits)
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(nil, func(context.Context, *kgo.Record) error { return nil }, nil)
	assert.Error(t, err)
	_, err = NewConsumer(&scriptedFetcher{}, nil, nil)
	assert.Error(t, err)
	_, err = NewConsumerClient([]string{"localhost:9092"}, "", "donations")
	assert.Error(t, err)
}
