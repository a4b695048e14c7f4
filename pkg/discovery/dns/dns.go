package dns

import (
    "context"
    "net"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/discovery"
)

// Options configures DNS discovery, typically against a headless service
// whose A records are the pods that should form one cluster.
type Options struct {
    // Names are hostnames (A/AAAA), SRV names ("_svc._proto.domain") or literal host:port.
    Names []string
    // Port is appended to A/AAAA answers. Defaults to 7946.
    Port int
    // Refresh bounds cache staleness; defaults to 5s.
    Refresh time.Duration
    // Timeout bounds one resolution round; defaults to 2s.
    Timeout  time.Duration
    Resolver *net.Resolver
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Timeout <= 0 { opts.Timeout = 2 * time.Second }
    if opts.Port == 0 { opts.Port = 7946 }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    return &impl{opts: opts}
}

func (d *impl) Seeds(ctx context.Context) []string {
    d.mu.Lock()
    defer d.mu.Unlock()
    if len(d.cache) > 0 && time.Since(d.last) < d.opts.Refresh {
        return append([]string(nil), d.cache...)
    }
    ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
    defer cancel()
    d.cache = d.resolveAll(ctx)
    d.last = time.Now()
    return append([]string(nil), d.cache...)
}

func (d *impl) resolveAll(ctx context.Context) []string {
    seen := make(map[string]struct{})
    add := func(hp string) { seen[hp] = struct{}{} }
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        switch {
        case name == "":
        case !strings.HasPrefix(name, "_") && hasPort(name):
            add(name)
        case strings.HasPrefix(name, "_"):
            for _, hp := range d.lookupSRV(ctx, name) { add(hp) }
        default:
            for _, hp := range d.lookupHost(ctx, name) { add(hp) }
        }
    }
    out := make([]string, 0, len(seen))
    for hp := range seen { out = append(out, hp) }
    sort.Strings(out)
    return out
}

func (d *impl) lookupSRV(ctx context.Context, fqdn string) []string {
    svc, proto, domain := parseSRVName(fqdn)
    if svc == "" { return nil }
    _, addrs, err := d.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
    if err != nil { return nil }
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
    }
    return out
}

func (d *impl) lookupHost(ctx context.Context, host string) []string {
    ips, err := d.opts.Resolver.LookupHost(ctx, host)
    if err != nil { return nil }
    out := make([]string, 0, len(ips))
    for _, ip := range ips { out = append(out, net.JoinHostPort(ip, strconv.Itoa(d.opts.Port))) }
    return out
}

func hasPort(s string) bool {
    _, p, err := net.SplitHostPort(s)
    return err == nil && p != ""
}

// parseSRVName splits "_service._proto.domain"; all parts empty when malformed.
func parseSRVName(fqdn string) (service, proto, domain string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 || !strings.HasPrefix(parts[0], "_") || !strings.HasPrefix(parts[1], "_") { return "", "", "" }
    return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}
