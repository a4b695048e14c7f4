package api

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "log"
    "net"
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/amirimatin/assisted-clustering/pkg/cluster"
    "github.com/amirimatin/assisted-clustering/pkg/flatfile"
    "github.com/amirimatin/assisted-clustering/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/assisted-clustering/pkg/observability/metrics"
)

const (
    StatusPath   = "/cluster/status"
    FlatFilePath = "/clustering/flatfile"
    HealthPath   = "/healthz"
    MetricsPath  = "/metrics"

    DefaultHost = "localhost"
    DefaultPort = 8080

    defaultMaxBody  = 1 << 20
    shutdownTimeout = 2 * time.Second
)

var (
    ErrClosed      = errors.New("api: closed")
    ErrInvalidPort = errors.New("api: invalid port")
)

// Consumer is the event consumer the REST API is bound to.
// *flatfile.Consumer satisfies it.
type Consumer interface {
    Submit(ctx context.Context, ff flatfile.FlatFile, source string) error
    ClusterStatus(ctx context.Context) (*cluster.Status, bool)
}

// Options configures the REST API.
type Options struct {
    // Host to bind; empty means DefaultHost.
    Host string
    // Port to bind; 0 picks a free port, see Addr.
    Port int
    // TLS switches the listener to HTTPS when non-nil.
    TLS *tls.Config
    // DefaultNodePort completes flat file entries that carry no port; 0 makes
    // the port mandatory.
    DefaultNodePort int
    // MaxBodyBytes caps flat file uploads; defaults to 1 MiB.
    MaxBodyBytes int64
    Logger       *log.Logger
}

// RestAPI serves the assisted clustering routes. It is started once and
// closed once; Close releases the listening socket.
type RestAPI struct {
    consumer Consumer
    opts     Options

    mu      sync.Mutex
    srv     *http.Server
    ln      net.Listener
    addr    string
    started bool
    closed  bool
    // served is closed once Serve has returned; watched once the ctx
    // watcher has exited.
    served  chan struct{}
    watched chan struct{}
}

// New binds the API to consumer. Nothing listens until Start.
func New(consumer Consumer, opts Options) *RestAPI {
    if opts.Host == "" { opts.Host = DefaultHost }
    if opts.MaxBodyBytes <= 0 { opts.MaxBodyBytes = defaultMaxBody }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &RestAPI{consumer: consumer, opts: opts}
}

// Handler returns the route multiplexer, usable without a listener.
func (a *RestAPI) Handler() http.Handler {
    mux := http.NewServeMux()
    mux.HandleFunc(StatusPath, a.handleStatus)
    mux.HandleFunc(FlatFilePath, a.handleFlatFile)
    mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { methodNotAllowed(w, http.MethodGet); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.Handle(MetricsPath, promhttp.Handler())
    return mux
}

// Start binds the listener before returning, so requests issued afterwards
// are accepted, then serves in the background until Close or ctx is done.
func (a *RestAPI) Start(ctx context.Context) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    if a.closed { return ErrClosed }
    if a.started { return nil }
    if a.opts.Port < 0 || a.opts.Port > 65535 { return fmt.Errorf("%w: %d", ErrInvalidPort, a.opts.Port) }
    obsmetrics.Register()

    bind := net.JoinHostPort(a.opts.Host, strconv.Itoa(a.opts.Port))
    ln, err := net.Listen("tcp", bind)
    if err != nil { return fmt.Errorf("api: listen %s: %w", bind, err) }
    a.addr = ln.Addr().String()
    a.ln = ln
    if a.opts.TLS != nil { ln = tls.NewListener(ln, a.opts.TLS) }
    a.srv = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
    a.started = true
    a.served, a.watched = make(chan struct{}), make(chan struct{})

    srv, served, watched := a.srv, a.served, a.watched
    // registered before Close can reach srv.Shutdown, which runs the hook
    stopped := a.stopped(srv)
    go func() {
        defer close(served)
        if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logutil.Errorf(a.opts.Logger, "api: serve %s: %v", bind, err)
        }
    }()
    go func() {
        defer close(watched)
        select {
        case <-ctx.Done():
            _ = a.Close()
        case <-stopped:
        }
    }()
    logutil.Infof(a.opts.Logger, "assisted clustering API listening at %s", a.addr)
    return nil
}

// Addr returns the bound host:port, empty before Start.
func (a *RestAPI) Addr() string {
    a.mu.Lock()
    defer a.mu.Unlock()
    return a.addr
}

// Close gracefully shuts the server down and releases the port: once it
// returns the address can be bound again. Safe to call more than once and
// before Start.
func (a *RestAPI) Close() error {
    ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer cancel()
    return a.Shutdown(ctx)
}

// Shutdown is Close with a caller supplied deadline.
func (a *RestAPI) Shutdown(ctx context.Context) error {
    a.mu.Lock()
    srv, ln, served := a.srv, a.ln, a.served
    if a.closed {
        a.mu.Unlock()
        // a concurrent caller is shutting down; return once the port is free
        if served != nil {
            select {
            case <-served:
            case <-ctx.Done():
                return ctx.Err()
            }
        }
        return nil
    }
    a.closed = true
    a.mu.Unlock()
    if srv == nil { return nil }
    err := srv.Shutdown(ctx)
    if errors.Is(err, context.DeadlineExceeded) { err = srv.Close() }
    // Serve may not have tracked the listener yet; Shutdown then leaves it open.
    if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil { err = cerr }
    select {
    case <-served:
    case <-ctx.Done():
        if err == nil { err = ctx.Err() }
    }
    return err
}

// stopped returns a channel closed once srv has been shut down.
func (a *RestAPI) stopped(srv *http.Server) <-chan struct{} {
    ch := make(chan struct{})
    srv.RegisterOnShutdown(func() { close(ch) })
    return ch
}

func (a *RestAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { methodNotAllowed(w, http.MethodGet); return }
    ctx, end := startSpan(r, "api.status")
    defer end()
    st, ok := a.consumer.ClusterStatus(ctx)
    if !ok {
        obsmetrics.StatusRequests.WithLabelValues("204").Inc()
        w.WriteHeader(http.StatusNoContent)
        return
    }
    obsmetrics.StatusRequests.WithLabelValues("200").Inc()
    writeJSON(w, http.StatusOK, st)
}

func (a *RestAPI) handleFlatFile(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { methodNotAllowed(w, http.MethodPost); return }
    ctx, end := startSpan(r, "api.flatfile")
    defer end()
    ff, err := flatfile.Parse(http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes), a.opts.DefaultNodePort)
    if err != nil {
        var tooLarge *http.MaxBytesError
        if errors.As(err, &tooLarge) {
            http.Error(w, "flat file too large", http.StatusRequestEntityTooLarge)
            return
        }
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    switch err := a.consumer.Submit(ctx, ff, "rest:"+r.RemoteAddr); {
    case err == nil:
        logutil.Infof(a.opts.Logger, "flat file received from %s: %d nodes", r.RemoteAddr, len(ff.Nodes))
        w.WriteHeader(http.StatusOK)
    case errors.Is(err, flatfile.ErrAlreadyProvided):
        http.Error(w, err.Error(), http.StatusConflict)
    case errors.Is(err, flatfile.ErrEmpty):
        http.Error(w, err.Error(), http.StatusBadRequest)
    case errors.Is(err, flatfile.ErrClosed), errors.Is(err, flatfile.ErrBusy):
        http.Error(w, err.Error(), http.StatusServiceUnavailable)
    default:
        logutil.Errorf(a.opts.Logger, "flat file submit: %v", err)
        http.Error(w, err.Error(), http.StatusInternalServerError)
    }
}

var _ Consumer = (*flatfile.Consumer)(nil)
