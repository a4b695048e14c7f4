package cluster

import (
    "context"
    "sync"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/membership"
)

type EventType string

const (
    EventFlatFileApplied EventType = "flatfile_applied"
    EventMemberJoin      EventType = "member_join"
    EventMemberLeave     EventType = "member_leave"
    EventClusterFormed   EventType = "cluster_formed"
)

// Event describes a formation-relevant change. Only the fields relevant to
// Type are set.
type Event struct {
    Type   EventType
    At     time.Time
    Nodes  []string
    Member *membership.MemberInfo
    Status *Status
}

// Subscribe returns a buffered channel of events, closed when ctx is done.
// Delivery is best-effort: a slow subscriber misses events rather than
// stalling formation.
func (c *Cluster) Subscribe(ctx context.Context) <-chan Event {
    ch := make(chan Event, 64)
    c.eb.add(ch)
    go func() {
        <-ctx.Done()
        c.eb.remove(ch)
        close(ch)
    }()
    return ch
}

type eventBus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
}

func (e *eventBus) add(ch chan Event) {
    e.mu.Lock()
    if e.subs == nil { e.subs = make(map[chan Event]struct{}) }
    e.subs[ch] = struct{}{}
    e.mu.Unlock()
}

func (e *eventBus) remove(ch chan Event) {
    e.mu.Lock()
    delete(e.subs, ch)
    e.mu.Unlock()
}

func (e *eventBus) publish(ev Event) {
    e.mu.Lock()
    defer e.mu.Unlock()
    for ch := range e.subs {
        select {
        case ch <- ev:
        default:
        }
    }
}
