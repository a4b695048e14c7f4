package file

import (
    "bufio"
    "context"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/discovery"
)

// Options configures flat-file discovery.
type Options struct {
    // Path to a flat file (one entry per line, or comma-separated), or a glob.
    Path string
    // Env names a variable holding CSV entries; it wins over Path when set.
    Env string
    // Refresh bounds cache staleness; defaults to 5s.
    Refresh time.Duration
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    mtime time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &impl{opts: opts}
}

func (i *impl) Seeds(context.Context) []string {
    i.mu.Lock()
    defer i.mu.Unlock()
    if i.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(i.opts.Env)); v != "" { return normalize(strings.Split(v, ",")) }
    }
    if i.opts.Path == "" { return nil }
    now := time.Now()
    if stat, err := os.Stat(i.opts.Path); err == nil {
        if stat.ModTime().After(i.mtime) || now.Sub(i.last) >= i.opts.Refresh {
            i.cache = loadFile(i.opts.Path)
            i.last = now
            i.mtime = stat.ModTime()
        }
        return append([]string(nil), i.cache...)
    }
    if now.Sub(i.last) < i.opts.Refresh && i.cache != nil { return append([]string(nil), i.cache...) }
    matches, _ := filepath.Glob(i.opts.Path)
    var all []string
    for _, m := range matches { all = append(all, loadFile(m)...) }
    i.cache = normalize(all)
    i.last = now
    return append([]string(nil), i.cache...)
}

func loadFile(path string) []string {
    f, err := os.Open(path)
    if err != nil { return nil }
    defer f.Close()
    var entries []string
    s := bufio.NewScanner(f)
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        entries = append(entries, strings.Split(line, ",")...)
    }
    if s.Err() != nil { return nil }
    return normalize(entries)
}

// normalize trims, de-duplicates and sorts.
func normalize(in []string) []string {
    set := make(map[string]struct{}, len(in))
    for _, x := range in {
        if x = strings.TrimSpace(x); x != "" { set[x] = struct{}{} }
    }
    out := make([]string, 0, len(set))
    for x := range set { out = append(out, x) }
    sort.Strings(out)
    return out
}
