package memberlist

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"

    base "github.com/amirimatin/assisted-clustering/pkg/membership"
)

// Options configures the memberlist-backed membership.
type Options struct {
    // NodeID must be unique in the cluster.
    NodeID string
    // Bind is host:port; port 0 picks a free port.
    Bind string
    // Advertise is the host:port peers should dial; derived from Bind when empty.
    Advertise string
    // Meta is gossiped with the node (e.g. the REST API address).
    Meta map[string]string
    Logger *log.Logger

    // Zero values keep memberlist LAN defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
}

type impl struct {
    opts Options

    mu sync.RWMutex
    ml *memberlist.Memberlist

    evMu   sync.RWMutex
    evts   chan base.Event
    closed bool
}

// New validates opts; no sockets are opened until Start.
func New(opts Options) (base.Membership, error) {
    if opts.NodeID == "" { return nil, fmt.Errorf("memberlist: empty NodeID") }
    if opts.Bind == "" { return nil, fmt.Errorf("memberlist: empty Bind address") }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &impl{opts: opts, evts: make(chan base.Event, 64)}, nil
}

func (m *impl) Start(ctx context.Context) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.ml != nil { return nil }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = m.opts.NodeID
    host, port, err := splitHostPort(m.opts.Bind)
    if err != nil { return fmt.Errorf("memberlist: bind: %w", err) }
    cfg.BindAddr, cfg.BindPort = host, port
    if m.opts.Advertise != "" {
        ahost, aport, err := splitHostPort(m.opts.Advertise)
        if err != nil { return fmt.Errorf("memberlist: advertise: %w", err) }
        cfg.AdvertiseAddr, cfg.AdvertisePort = ahost, aport
    }
    if m.opts.ProbeInterval > 0 { cfg.ProbeInterval = m.opts.ProbeInterval }
    if m.opts.ProbeTimeout > 0 { cfg.ProbeTimeout = m.opts.ProbeTimeout }
    if m.opts.SuspicionMult > 0 { cfg.SuspicionMult = m.opts.SuspicionMult }
    // memberlist is chatty at DEBUG; our own logger carries the interesting events
    cfg.LogOutput = io.Discard

    meta, _ := json.Marshal(m.opts.Meta)
    cfg.Delegate = &nodeDelegate{meta: meta}
    cfg.Events = &eventDelegate{emit: m.emit}

    ml, err := memberlist.Create(cfg)
    if err != nil { return err }
    m.ml = ml

    go func() {
        <-ctx.Done()
        _ = m.Stop()
    }()
    return nil
}

func (m *impl) Join(addrs []string) (int, error) {
    m.mu.RLock()
    ml := m.ml
    m.mu.RUnlock()
    if ml == nil { return 0, fmt.Errorf("memberlist: not started") }
    if len(addrs) == 0 { return 0, nil }
    return ml.Join(addrs)
}

func (m *impl) Local() base.MemberInfo {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil { return base.MemberInfo{} }
    return toMemberInfo(m.ml.LocalNode())
}

func (m *impl) Members() []base.MemberInfo {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil { return nil }
    nodes := m.ml.Members()
    out := make([]base.MemberInfo, 0, len(nodes))
    for _, n := range nodes { out = append(out, toMemberInfo(n)) }
    return out
}

func (m *impl) Events() <-chan base.Event { return m.evts }

func (m *impl) Leave() error {
    m.mu.RLock()
    ml := m.ml
    m.mu.RUnlock()
    if ml == nil { return nil }
    return ml.Leave(time.Second)
}

func (m *impl) Stop() error {
    m.mu.Lock()
    ml := m.ml
    m.ml = nil
    m.mu.Unlock()
    var err error
    if ml != nil { err = ml.Shutdown() }

    m.evMu.Lock()
    if !m.closed {
        m.closed = true
        close(m.evts)
    }
    m.evMu.Unlock()
    return err
}

// HealthScore exposes memberlist's awareness score.
func (m *impl) HealthScore() int {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil { return -1 }
    return m.ml.GetHealthScore()
}

func (m *impl) emit(e base.Event) {
    m.evMu.RLock()
    defer m.evMu.RUnlock()
    if m.closed { return }
    select {
    case m.evts <- e:
    default:
        m.opts.Logger.Printf("memberlist: dropping %s event for %s: channel full", e.Type, e.Member.ID)
    }
}

func toMemberInfo(n *memberlist.Node) base.MemberInfo {
    meta := map[string]string{}
    if len(n.Meta) > 0 { _ = json.Unmarshal(n.Meta, &meta) }
    return base.MemberInfo{ID: n.Name, Addr: n.Address(), Meta: meta}
}

func splitHostPort(hp string) (string, int, error) {
    host, ps, err := net.SplitHostPort(hp)
    if err != nil { return "", 0, err }
    p, err := strconv.Atoi(ps)
    if err != nil || p < 0 || p > 65535 { return "", 0, fmt.Errorf("invalid port %q", ps) }
    return host, p, nil
}

type eventDelegate struct {
    emit func(base.Event)
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node)   { d.notify(base.EventJoin, n) }
func (d *eventDelegate) NotifyLeave(n *memberlist.Node)  { d.notify(base.EventLeave, n) }
func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) { d.notify(base.EventUpdate, n) }

func (d *eventDelegate) notify(t base.EventType, n *memberlist.Node) {
    if n == nil { return }
    d.emit(base.Event{Type: t, Member: toMemberInfo(n), At: time.Now()})
}

// nodeDelegate only gossips static node metadata.
type nodeDelegate struct{ meta []byte }

func (d *nodeDelegate) NodeMeta(limit int) []byte {
    if len(d.meta) <= limit { return d.meta }
    return nil
}

func (d *nodeDelegate) NotifyMsg([]byte)                   {}
func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte    { return nil }
func (d *nodeDelegate) LocalState(bool) []byte             { return nil }
func (d *nodeDelegate) MergeRemoteState([]byte, bool)      {}
