package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"HeadToHead/internal/testutil"
)

// recordingAppender collects appended prices on a channel.
type recordingAppender struct {
	prices chan uint64
}

func (r *recordingAppender) AppendPrice(_ uuid.UUID, value uint64) (int, error) {
	r.prices <- value
	return 0, nil
}

func TestPriceSubscriber_AppendsFreshTicksOnly(t *testing.T) {
	testutil.RequireIntegration(t)

	nc, js, err := ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test NATS not available: %v", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Start from a clean stream so ticks from earlier runs are not redelivered.
	js.DeleteStream(ctx, PriceStream)
	if err := EnsureStreams(ctx, js); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}

	appender := &recordingAppender{prices: make(chan uint64, 16)}
	sub := NewPriceSubscriber(js, appender, uuid.New(), nil)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Stop()

	publish := func(price uint64, seq int64) {
		t.Helper()
		data, _ := json.Marshal(Tick{Price: price, FeedSequence: seq, TimestampUs: time.Now().UnixMicro()})
		subject := fmt.Sprintf("h2h.prices.test.%d", seq)
		if _, err := js.Publish(ctx, subject, data); err != nil {
			t.Fatalf("publish tick: %v", err)
		}
	}

	// The duplicate and out-of-order sequences must be dropped.
	publish(100_000, 1)
	publish(101_000, 2)
	publish(101_500, 2)
	publish(99_000, 1)
	publish(102_000, 3)

	want := []uint64{100_000, 101_000, 102_000}
	for i, w := range want {
		select {
		case got := <-appender.prices:
			if got != w {
				t.Fatalf("append %d: got price %d, want %d", i, got, w)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for append %d", i)
		}
	}

	// No further appends should arrive for the dropped ticks.
	select {
	case got := <-appender.prices:
		t.Fatalf("unexpected extra append: %d", got)
	case <-time.After(500 * time.Millisecond):
	}
}
