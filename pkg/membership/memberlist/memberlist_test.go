package memberlist

import (
    "context"
    "io"
    "log"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    base "github.com/amirimatin/assisted-clustering/pkg/membership"
)

func TestMemberlist_StartLocal(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    m := startNode(t, ctx, "t1")
    defer m.Stop()

    local := m.Local()
    assert.Equal(t, "t1", local.ID)
    assert.NotEmpty(t, local.Addr)
    assert.GreaterOrEqual(t, m.HealthScore(), 0)
}

func TestMemberlist_JoinLeave(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()

    n1 := startNode(t, ctx, "n1")
    defer n1.Stop()
    n2 := startNode(t, ctx, "n2")
    defer n2.Stop()

    n, err := n2.Join([]string{n1.Local().Addr})
    require.NoError(t, err)
    require.Equal(t, 1, n)
    awaitMembers(t, n1, 2, 5*time.Second)
    awaitMembers(t, n2, 2, 5*time.Second)
    awaitEvent(t, n1.Events(), base.EventJoin, "n2", 5*time.Second)

    _ = n2.Leave()
    _ = n2.Stop()
    awaitMembers(t, n1, 1, 5*time.Second)
}

func TestMemberlist_StopClosesEvents(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    m := startNode(t, ctx, "s1")
    require.NoError(t, m.Stop())
    require.NoError(t, m.Stop(), "second stop")
    for range m.Events() {
    }
    assert.Equal(t, -1, m.HealthScore())
    _, err := m.Join([]string{"127.0.0.1:1"})
    assert.Error(t, err, "join after stop")
}

func TestNew_Validates(t *testing.T) {
    _, err := New(Options{Bind: "127.0.0.1:0"})
    assert.Error(t, err, "empty NodeID")
    _, err = New(Options{NodeID: "x"})
    assert.Error(t, err, "empty Bind")
}

func startNode(t *testing.T, ctx context.Context, id string) *impl {
    t.Helper()
    m, err := New(Options{NodeID: id, Bind: "127.0.0.1:0", Logger: log.New(io.Discard, "", 0), ProbeInterval: 100 * time.Millisecond, SuspicionMult: 2})
    require.NoError(t, err)
    require.NoError(t, m.Start(ctx))
    return m.(*impl)
}

func awaitMembers(t *testing.T, m base.Membership, want int, timeout time.Duration) {
    t.Helper()
    require.Eventually(t, func() bool { return len(m.Members()) == want }, timeout, 100*time.Millisecond,
        "members: want %d", want)
}

func awaitEvent(t *testing.T, ch <-chan base.Event, typ base.EventType, id string, timeout time.Duration) {
    t.Helper()
    timer := time.NewTimer(timeout)
    defer timer.Stop()
    for {
        select {
        case e := <-ch:
            if e.Type == typ && e.Member.ID == id { return }
        case <-timer.C:
            require.FailNow(t, "event timeout", "no %s event for %s", typ, id)
        }
    }
}
