package flatfile

import (
    "context"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/assisted-clustering/pkg/discovery"
    "github.com/amirimatin/assisted-clustering/pkg/discovery/static"
)

func TestWatchSubmitsFirstNonEmptyResult(t *testing.T) {
    a := &fakeApplier{}
    c := startConsumer(t, a)
    var polls atomic.Int32
    d := discovery.Func(func(context.Context) []string {
        if polls.Add(1) < 3 { return nil }
        return []string{"10.0.0.2", "10.0.0.1:7000"}
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    require.NoError(t, Watch(ctx, d, c, WatchOptions{Interval: 5 * time.Millisecond, DefaultPort: 7946, Logger: quietLogger()}))
    require.Eventually(t, func() bool { return len(a.calls()) == 1 }, time.Second, 5*time.Millisecond)
    assert.Equal(t, []string{"10.0.0.1:7000", "10.0.0.2:7946"}, a.calls()[0])
}

func TestWatchStopsWhenAlreadyProvided(t *testing.T) {
    c := startConsumer(t, &fakeApplier{})
    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"a:1"}}, "rest"))
    assert.NoError(t, Watch(context.Background(), static.New("b:2"), c, WatchOptions{Interval: time.Millisecond, Logger: quietLogger()}))
}

func TestWatchHonoursCancellation(t *testing.T) {
    c := startConsumer(t, &fakeApplier{})
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
    defer cancel()
    err := Watch(ctx, static.New(), c, WatchOptions{Interval: 5 * time.Millisecond, Logger: quietLogger()})
    assert.ErrorIs(t, err, context.DeadlineExceeded)
}
