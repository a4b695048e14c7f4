package flatfile

import (
    "context"
    "errors"
    "log"
    "sync"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/cluster"
    "github.com/amirimatin/assisted-clustering/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/assisted-clustering/pkg/observability/metrics"
    "github.com/amirimatin/assisted-clustering/pkg/observability/tracing"
)

var (
    ErrAlreadyProvided = errors.New("flatfile: flat file already provided")
    ErrClosed          = errors.New("flatfile: consumer closed")
    ErrBusy            = errors.New("flatfile: consumer busy")
)

// Applier forms a cluster from a flat file and reports its status.
// *cluster.Cluster satisfies it.
type Applier interface {
    ApplyFlatFile(ctx context.Context, nodes []string) error
    Status(ctx context.Context) (*cluster.Status, bool)
}

// Event is one accepted flat file on its way to the applier.
type Event struct {
    FlatFile FlatFile
    Source   string
    At       time.Time
}

// ConsumerOptions configures a Consumer. The zero value is usable: without an
// Applier flat files are accepted and logged but no status is ever reported.
type ConsumerOptions struct {
    Applier Applier
    Logger  *log.Logger
}

// Consumer accepts a single flat file per node lifetime, hands it to the
// Applier on its own goroutine, and answers status queries for the REST API.
type Consumer struct {
    opts  ConsumerOptions
    queue chan Event

    mu       sync.Mutex
    accepted bool
    applied  bool
    started  bool
    closed   bool
    cancel   context.CancelFunc
    done     chan struct{}
}

func NewConsumer(opts ConsumerOptions) *Consumer {
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &Consumer{opts: opts, queue: make(chan Event, 1), done: make(chan struct{})}
}

// Start launches the worker; events submitted earlier are processed then.
func (c *Consumer) Start(ctx context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.closed { return ErrClosed }
    if c.started { return nil }
    c.started = true
    ctx, c.cancel = context.WithCancel(ctx)
    go c.loop(ctx)
    return nil
}

// Submit enqueues ff for application. Only the first flat file is taken;
// later ones get ErrAlreadyProvided unless the first failed to apply.
func (c *Consumer) Submit(ctx context.Context, ff FlatFile, source string) error {
    _, end := tracing.StartSpan(ctx, "flatfile.submit", "source", source)
    defer end()
    if len(ff.Nodes) == 0 { return ErrEmpty }
    c.mu.Lock()
    defer c.mu.Unlock()
    switch {
    case c.closed:
        obsmetrics.FlatFileSubmissions.WithLabelValues("closed").Inc()
        return ErrClosed
    case c.accepted:
        obsmetrics.FlatFileSubmissions.WithLabelValues("duplicate").Inc()
        return ErrAlreadyProvided
    }
    select {
    case c.queue <- Event{FlatFile: ff, Source: source, At: time.Now()}:
    default:
        obsmetrics.FlatFileSubmissions.WithLabelValues("busy").Inc()
        return ErrBusy
    }
    c.accepted = true
    obsmetrics.FlatFileSubmissions.WithLabelValues("accepted").Inc()
    logutil.Infof(c.opts.Logger, "flat file accepted from %s: %d nodes", source, len(ff.Nodes))
    return nil
}

// Accepted reports whether a flat file has been taken.
func (c *Consumer) Accepted() bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.accepted
}

// ClusterStatus returns the formed cluster's status; false until a flat file
// was applied and the applier reports formation.
func (c *Consumer) ClusterStatus(ctx context.Context) (*cluster.Status, bool) {
    c.mu.Lock()
    applied := c.applied
    c.mu.Unlock()
    if !applied || c.opts.Applier == nil { return nil, false }
    return c.opts.Applier.Status(ctx)
}

// Close stops the worker and waits for it. Pending events are dropped.
func (c *Consumer) Close() error {
    c.mu.Lock()
    if c.closed {
        c.mu.Unlock()
        return nil
    }
    c.closed = true
    started, cancel := c.started, c.cancel
    c.mu.Unlock()
    if started {
        cancel()
        <-c.done
    }
    return nil
}

func (c *Consumer) loop(ctx context.Context) {
    defer close(c.done)
    for {
        select {
        case <-ctx.Done():
            return
        case ev := <-c.queue:
            c.apply(ctx, ev)
        }
    }
}

func (c *Consumer) apply(ctx context.Context, ev Event) {
    ctx, end := tracing.StartSpan(ctx, "flatfile.apply", "source", ev.Source)
    defer end()
    if c.opts.Applier == nil {
        logutil.Warnf(c.opts.Logger, "flat file from %s recorded, no cluster runtime attached", ev.Source)
        return
    }
    if err := c.opts.Applier.ApplyFlatFile(ctx, ev.FlatFile.Nodes); err != nil {
        logutil.Errorf(c.opts.Logger, "apply flat file from %s: %v", ev.Source, err)
        c.mu.Lock()
        // an applier that already holds a flat file keeps it; anything else may be retried
        c.accepted = errors.Is(err, cluster.ErrAlreadyApplied)
        c.applied = c.accepted
        c.mu.Unlock()
        return
    }
    c.mu.Lock()
    c.applied = true
    c.mu.Unlock()
}
