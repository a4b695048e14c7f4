package cluster

import (
    "context"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/internal/logutil"
    "github.com/amirimatin/assisted-clustering/pkg/membership"
    obsmetrics "github.com/amirimatin/assisted-clustering/pkg/observability/metrics"
    "github.com/amirimatin/assisted-clustering/pkg/observability/tracing"
)

// Cluster turns an applied flat file into a formed cluster: it joins the
// listed nodes through membership and reports a Status once every one of them
// has been seen alive. Before that, Status reports nothing.
type Cluster struct {
    opts Options
    mem  membership.Membership
    eb   eventBus

    mu     sync.RWMutex
    run    struct {
        started bool
        closed  bool
        ctx     context.Context
        cancel  context.CancelFunc
        done    sync.WaitGroup
    }
    nodes  []string
    formed bool
}

// New validates opts. No network activity happens until Start.
func New(opts Options) (*Cluster, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.JoinRetry <= 0 { opts.JoinRetry = time.Second }
    return &Cluster{opts: opts, mem: opts.Membership}, nil
}

// Start launches membership and the loop translating its events.
func (c *Cluster) Start(ctx context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.run.closed { return ErrClosed }
    if c.run.started { return nil }
    obsmetrics.Register()
    ctx, cancel := context.WithCancel(ctx)
    if err := c.mem.Start(ctx); err != nil {
        cancel()
        return err
    }
    c.run.started = true
    c.run.ctx, c.run.cancel = ctx, cancel
    c.run.done.Add(1)
    go c.membershipEventsLoop(ctx)
    logutil.Infof(c.opts.Logger, "membership started: id=%s addr=%s", c.opts.NodeID, c.mem.Local().Addr)
    return nil
}

// ApplyFlatFile records the node list this node must form a cluster with and
// starts joining it. Only the first flat file is accepted.
func (c *Cluster) ApplyFlatFile(ctx context.Context, nodes []string) error {
    _, end := tracing.StartSpan(ctx, "cluster.applyFlatFile")
    defer end()
    if len(nodes) == 0 { return ErrEmptyFlatFile }
    c.mu.Lock()
    switch {
    case c.run.closed:
        c.mu.Unlock()
        return ErrClosed
    case !c.run.started:
        c.mu.Unlock()
        return ErrNotStarted
    case c.nodes != nil:
        c.mu.Unlock()
        return ErrAlreadyApplied
    }
    c.nodes = append([]string(nil), nodes...)
    sort.Strings(c.nodes)
    runCtx := c.run.ctx
    c.run.done.Add(1)
    c.mu.Unlock()

    obsmetrics.FlatFileNodes.Set(float64(len(nodes)))
    logutil.Infof(c.opts.Logger, "flat file applied: %d nodes %v", len(nodes), nodes)
    c.eb.publish(Event{Type: EventFlatFileApplied, At: time.Now(), Nodes: append([]string(nil), nodes...)})
    go c.joinLoop(runCtx)
    return nil
}

// Status returns the cluster view and true once the cluster has formed.
// Formation is sticky: nodes failing afterwards show up as unhealthy.
func (c *Cluster) Status(ctx context.Context) (*Status, bool) {
    _, end := tracing.StartSpan(ctx, "cluster.status")
    defer end()
    st, _ := c.evaluate()
    c.mu.RLock()
    formed := c.formed
    c.mu.RUnlock()
    if !formed { return nil, false }
    return st, true
}

// Nodes returns the applied flat file, nil when none was applied yet.
func (c *Cluster) Nodes() []string {
    c.mu.RLock()
    defer c.mu.RUnlock()
    return append([]string(nil), c.nodes...)
}

// LocalAddr returns the address membership advertises for this node; flat
// files should list it. Empty before Start.
func (c *Cluster) LocalAddr() string {
    c.mu.RLock()
    started := c.run.started
    c.mu.RUnlock()
    if !started { return "" }
    return c.mem.Local().Addr
}

// Stop leaves membership and waits for background loops.
func (c *Cluster) Stop(ctx context.Context) error {
    c.mu.Lock()
    if c.run.closed {
        c.mu.Unlock()
        return nil
    }
    c.run.closed = true
    started := c.run.started
    cancel := c.run.cancel
    c.mu.Unlock()
    if !started { return nil }
    _ = c.mem.Leave()
    err := c.mem.Stop()
    cancel()
    done := make(chan struct{})
    go func() { c.run.done.Wait(); close(done) }()
    select {
    case <-done:
    case <-ctx.Done():
        return ctx.Err()
    }
    return err
}

// Close is Stop with a background context.
func (c *Cluster) Close() error { return c.Stop(context.Background()) }

// evaluate computes the current view of the flat file nodes and flips the
// formed flag the first time every node is alive. ok is false when no flat
// file was applied.
func (c *Cluster) evaluate() (*Status, bool) {
    c.mu.RLock()
    nodes := c.nodes
    c.mu.RUnlock()
    if nodes == nil { return nil, false }

    members := c.mem.Members()
    obsmetrics.ClusterMembers.Set(float64(len(members)))
    if hr, ok := c.mem.(membership.HealthReporter); ok { obsmetrics.MembershipHealthScore.Set(float64(hr.HealthScore())) }
    alive := make(map[string]struct{}, 2*len(members)+2)
    for _, m := range append(members, c.mem.Local()) {
        if m.Addr != "" { alive[m.Addr] = struct{}{} }
        if m.ID != "" { alive[m.ID] = struct{}{} }
    }
    st := &Status{HealthyNodes: []string{}, UnhealthyNodes: []string{}}
    for _, n := range nodes {
        if _, ok := alive[n]; ok {
            st.HealthyNodes = append(st.HealthyNodes, n)
        } else {
            st.UnhealthyNodes = append(st.UnhealthyNodes, n)
        }
    }
    if len(st.HealthyNodes) > 0 { st.LeaderNode = st.HealthyNodes[0] }
    obsmetrics.HealthyNodes.Set(float64(len(st.HealthyNodes)))
    obsmetrics.UnhealthyNodes.Set(float64(len(st.UnhealthyNodes)))

    c.mu.Lock()
    newlyFormed := !c.formed && len(st.UnhealthyNodes) == 0
    if newlyFormed { c.formed = true }
    c.mu.Unlock()
    if newlyFormed {
        obsmetrics.Formed.Set(1)
        logutil.Infof(c.opts.Logger, "cluster formed: leader=%s nodes=%s", st.LeaderNode, strings.Join(st.HealthyNodes, ","))
        c.eb.publish(Event{Type: EventClusterFormed, At: time.Now(), Status: st})
    }
    return st, true
}

func (c *Cluster) membershipEventsLoop(ctx context.Context) {
    defer c.run.done.Done()
    evch := c.mem.Events()
    for {
        select {
        case <-ctx.Done():
            return
        case e, ok := <-evch:
            if !ok { return }
            m := e.Member
            switch e.Type {
            case membership.EventJoin:
                c.eb.publish(Event{Type: EventMemberJoin, At: e.At, Member: &m})
            case membership.EventLeave:
                logutil.Warnf(c.opts.Logger, "member left: id=%s addr=%s", m.ID, m.Addr)
                c.eb.publish(Event{Type: EventMemberLeave, At: e.At, Member: &m})
            }
            c.evaluate()
        }
    }
}

// joinLoop keeps joining flat file nodes that are not alive yet until the
// cluster forms; peers are commonly started after this node.
func (c *Cluster) joinLoop(ctx context.Context) {
    defer c.run.done.Done()
    ticker := time.NewTicker(c.opts.JoinRetry)
    defer ticker.Stop()
    for {
        st, _ := c.evaluate()
        c.mu.RLock()
        formed := c.formed
        c.mu.RUnlock()
        if formed { return }
        if missing := c.peersToJoin(st.UnhealthyNodes); len(missing) > 0 {
            if n, err := c.mem.Join(missing); err != nil {
                logutil.Warnf(c.opts.Logger, "join %v: contacted=%d err=%v", missing, n, err)
            }
        }
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
        }
    }
}

func (c *Cluster) peersToJoin(unhealthy []string) []string {
    local := c.mem.Local()
    out := make([]string, 0, len(unhealthy))
    for _, n := range unhealthy {
        if n == local.Addr || n == local.ID { continue }
        out = append(out, n)
    }
    return out
}
