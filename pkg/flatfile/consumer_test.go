package flatfile

import (
    "context"
    "errors"
    "io"
    "log"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/assisted-clustering/pkg/cluster"
)

type fakeApplier struct {
    mu      sync.Mutex
    nodes   [][]string
    err     error
    status  *cluster.Status
    formed  bool
}

func (f *fakeApplier) ApplyFlatFile(_ context.Context, nodes []string) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.nodes = append(f.nodes, nodes)
    return f.err
}

func (f *fakeApplier) Status(context.Context) (*cluster.Status, bool) {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.status, f.formed
}

func (f *fakeApplier) calls() [][]string {
    f.mu.Lock(); defer f.mu.Unlock()
    return append([][]string(nil), f.nodes...)
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func startConsumer(t *testing.T, a Applier) *Consumer {
    t.Helper()
    c := NewConsumer(ConsumerOptions{Applier: a, Logger: quietLogger()})
    require.NoError(t, c.Start(context.Background()))
    t.Cleanup(func() { _ = c.Close() })
    return c
}

func TestZeroConsumerNeverReportsStatus(t *testing.T) {
    c := NewConsumer(ConsumerOptions{Logger: quietLogger()})
    defer c.Close()
    require.NoError(t, c.Start(context.Background()))
    st, ok := c.ClusterStatus(context.Background())
    assert.False(t, ok)
    assert.Nil(t, st)

    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"a:1"}}, "test"))
    time.Sleep(20 * time.Millisecond)
    _, ok = c.ClusterStatus(context.Background())
    assert.False(t, ok, "no applier: status must stay absent")
}

func TestSubmitAppliesOnce(t *testing.T) {
    a := &fakeApplier{}
    c := startConsumer(t, a)
    ff := FlatFile{Nodes: []string{"10.0.0.1:7946", "10.0.0.2:7946"}}
    require.NoError(t, c.Submit(context.Background(), ff, "rest"))
    assert.ErrorIs(t, c.Submit(context.Background(), ff, "rest"), ErrAlreadyProvided)
    require.Eventually(t, func() bool { return len(a.calls()) == 1 }, time.Second, 5*time.Millisecond)
    assert.Equal(t, ff.Nodes, a.calls()[0])
}

func TestSubmitRejectsEmpty(t *testing.T) {
    c := startConsumer(t, &fakeApplier{})
    assert.ErrorIs(t, c.Submit(context.Background(), FlatFile{}, "rest"), ErrEmpty)
    assert.False(t, c.Accepted(), "empty flat file must not count as accepted")
}

func TestStatusDelegatesAfterApply(t *testing.T) {
    want := &cluster.Status{LeaderNode: "10.0.0.1:7946", HealthyNodes: []string{"10.0.0.1:7946"}, UnhealthyNodes: []string{}}
    a := &fakeApplier{status: want, formed: true}
    c := startConsumer(t, a)
    _, ok := c.ClusterStatus(context.Background())
    require.False(t, ok, "status before any flat file")

    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"10.0.0.1:7946"}}, "rest"))
    require.Eventually(t, func() bool { _, ok := c.ClusterStatus(context.Background()); return ok }, time.Second, 5*time.Millisecond)
    got, _ := c.ClusterStatus(context.Background())
    assert.Equal(t, want, got)
}

func TestFailedApplyAllowsResubmit(t *testing.T) {
    a := &fakeApplier{err: errors.New("boom")}
    c := startConsumer(t, a)
    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"a:1"}}, "rest"))
    require.Eventually(t, func() bool { return len(a.calls()) == 1 && !c.Accepted() }, time.Second, 5*time.Millisecond)
    a.mu.Lock(); a.err = nil; a.mu.Unlock()
    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"b:2"}}, "rest"))
    require.Eventually(t, func() bool { return len(a.calls()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestSubmitBeforeStartIsProcessedOnStart(t *testing.T) {
    a := &fakeApplier{}
    c := NewConsumer(ConsumerOptions{Applier: a, Logger: quietLogger()})
    defer c.Close()
    require.NoError(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"a:1"}}, "rest"))
    require.NoError(t, c.Start(context.Background()))
    require.Eventually(t, func() bool { return len(a.calls()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
    c := NewConsumer(ConsumerOptions{Logger: quietLogger()})
    require.NoError(t, c.Close())
    require.NoError(t, c.Close())
    assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
    assert.ErrorIs(t, c.Submit(context.Background(), FlatFile{Nodes: []string{"a:1"}}, "rest"), ErrClosed)
}
