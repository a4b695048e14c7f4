package bootstrap

import (
    "context"
    "errors"
    "log"
    "os"
    "sync"

    "github.com/amirimatin/assisted-clustering/pkg/api"
    "github.com/amirimatin/assisted-clustering/pkg/cluster"
    "github.com/amirimatin/assisted-clustering/pkg/config"
    "github.com/amirimatin/assisted-clustering/pkg/discovery"
    dDNS "github.com/amirimatin/assisted-clustering/pkg/discovery/dns"
    dFile "github.com/amirimatin/assisted-clustering/pkg/discovery/file"
    dStatic "github.com/amirimatin/assisted-clustering/pkg/discovery/static"
    "github.com/amirimatin/assisted-clustering/pkg/flatfile"
    "github.com/amirimatin/assisted-clustering/pkg/internal/logutil"
    ml "github.com/amirimatin/assisted-clustering/pkg/membership/memberlist"
)

// Node is one assembled assisted clustering node: the REST API bound to the
// flat file consumer, which feeds the formation runtime.
type Node struct {
    Config   config.Config
    Consumer *flatfile.Consumer
    Cluster  *cluster.Cluster
    API      *api.RestAPI

    disc   discovery.Discovery
    logger *log.Logger

    mu          sync.Mutex
    cancel      context.CancelFunc
    watchCancel context.CancelFunc
    wg          sync.WaitGroup
}

// Build assembles a Node from cfg without opening any socket.
func Build(cfg config.Config, logger *log.Logger) (*Node, error) {
    if err := cfg.Validate(); err != nil { return nil, err }
    if logger == nil { logger = log.Default() }
    if cfg.LogJSON { logutil.SetJSON(true) }

    nodeID := cfg.NodeID
    if nodeID == "" { nodeID = defaultNodeID(cfg) }

    meta := map[string]string{"api": cfg.APIAddr()}
    mem, err := ml.New(ml.Options{NodeID: nodeID, Bind: cfg.MemberBind, Advertise: cfg.MemberAdvertise, Meta: meta, Logger: component(logger, "membership")})
    if err != nil { return nil, err }
    cl, err := cluster.New(cluster.Options{NodeID: nodeID, Membership: mem, Logger: component(logger, "cluster"), JoinRetry: cfg.JoinRetry})
    if err != nil { return nil, err }

    consumer := flatfile.NewConsumer(flatfile.ConsumerOptions{Applier: cl, Logger: component(logger, "flatfile")})

    tlsCfg, err := cfg.TLS.Server()
    if err != nil { return nil, err }
    restAPI := api.New(consumer, api.Options{
        Host:            cfg.Host,
        Port:            cfg.Port,
        TLS:             tlsCfg,
        DefaultNodePort: cfg.MemberPort(),
        Logger:          component(logger, "api"),
    })

    return &Node{Config: cfg, Consumer: consumer, Cluster: cl, API: restAPI, disc: newDiscovery(cfg), logger: logger}, nil
}

// Start brings up membership, the consumer and the REST API, in that order,
// and starts watching discovery when one is configured. The REST API is
// accepting connections when Start returns.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    ctx, cancel := context.WithCancel(ctx)
    n.cancel = cancel
    if err := n.Cluster.Start(ctx); err != nil { cancel(); return err }
    if err := n.Consumer.Start(ctx); err != nil { cancel(); _ = n.Cluster.Close(); return err }
    if err := n.API.Start(ctx); err != nil {
        cancel()
        _ = n.Consumer.Close()
        _ = n.Cluster.Close()
        return err
    }
    if n.disc != nil {
        ctx, watchCancel := context.WithCancel(ctx)
        n.watchCancel = watchCancel
        n.wg.Add(1)
        go func() {
            defer n.wg.Done()
            opts := flatfile.WatchOptions{Interval: n.Config.DiscoveryInterval, DefaultPort: n.Config.MemberPort(), Logger: component(n.logger, "discovery")}
            if err := flatfile.Watch(ctx, n.disc, n.Consumer, opts); err != nil && !errors.Is(err, context.Canceled) {
                logutil.Warnf(n.logger, "discovery watch ended: %v", err)
            }
        }()
    }
    return nil
}

// Close stops the discovery watcher, then releases the REST API port, the
// consumer and membership.
func (n *Node) Close() error {
    n.mu.Lock()
    cancel, watchCancel := n.cancel, n.watchCancel
    n.mu.Unlock()
    if watchCancel != nil { watchCancel() }
    n.wg.Wait()
    err := errors.Join(n.API.Close(), n.Consumer.Close(), n.Cluster.Close())
    if cancel != nil { cancel() }
    return err
}

// Run builds and starts a Node. The caller must Close it.
func Run(ctx context.Context, cfg config.Config, logger *log.Logger) (*Node, error) {
    n, err := Build(cfg, logger)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, err }
    return n, nil
}

func newDiscovery(cfg config.Config) discovery.Discovery {
    switch cfg.Discovery {
    case config.DiscoveryFile:
        return dFile.New(dFile.Options{Path: cfg.FlatFilePath, Env: cfg.FlatFileEnv, Refresh: cfg.DiscoveryRefresh})
    case config.DiscoveryStatic:
        return dStatic.New(dStatic.Parse(cfg.SeedsCSV)...)
    case config.DiscoveryDNS:
        return dDNS.New(dDNS.Options{Names: dStatic.Parse(cfg.DNSNamesCSV), Port: cfg.MemberPort(), Refresh: cfg.DiscoveryRefresh})
    default:
        return nil
    }
}

// defaultNodeID prefers the advertised member address so flat file entries
// and member IDs coincide.
func defaultNodeID(cfg config.Config) string {
    if cfg.MemberAdvertise != "" { return cfg.MemberAdvertise }
    if h, err := os.Hostname(); err == nil && h != "" { return h + "-" + cfg.MemberBind }
    return cfg.MemberBind
}

func component(l *log.Logger, name string) *log.Logger {
    return log.New(l.Writer(), name+": ", l.Flags())
}
