package membership

import (
    "context"
    "time"
)

// MemberInfo is one node as seen by the membership layer. Addr is the
// host:port peers use to reach it, the same form flat files list nodes in.
type MemberInfo struct {
    ID   string            `json:"id"`
    Addr string            `json:"addr"`
    Meta map[string]string `json:"meta,omitempty"`
}

type EventType string

const (
    EventJoin   EventType = "join"
    EventLeave  EventType = "leave"
    EventUpdate EventType = "update"
)

// Event is a translated membership change notification.
type Event struct {
    Type   EventType
    Member MemberInfo
    At     time.Time
}

// Membership abstracts the gossip/failure-detection layer the cluster runtime
// consumes. Members returns only nodes currently considered alive.
type Membership interface {
    Start(ctx context.Context) error
    Join(addrs []string) (int, error)
    Local() MemberInfo
    Members() []MemberInfo
    Events() <-chan Event
    Leave() error
    Stop() error
}

// HealthReporter is optionally implemented by Membership. -1 means not started.
type HealthReporter interface {
    HealthScore() int
}
