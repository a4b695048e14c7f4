package flatfile

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/discovery"
    "github.com/amirimatin/assisted-clustering/pkg/internal/logutil"
)

// WatchOptions configures Watch.
type WatchOptions struct {
    // Interval between discovery polls; defaults to 2s.
    Interval time.Duration
    // DefaultPort completes entries that carry no port.
    DefaultPort int
    Logger      *log.Logger
}

// Watch polls d until it yields a usable node list, submits it to c once and
// returns. It also returns nil when a flat file was provided by other means
// (e.g. POSTed) in the meantime, and ctx.Err() when cancelled first.
func Watch(ctx context.Context, d discovery.Discovery, c *Consumer, opts WatchOptions) error {
    if opts.Interval <= 0 { opts.Interval = 2 * time.Second }
    if opts.Logger == nil { opts.Logger = log.Default() }
    ticker := time.NewTicker(opts.Interval)
    defer ticker.Stop()
    for {
        if c.Accepted() { return nil }
        if seeds := d.Seeds(ctx); len(seeds) > 0 {
            ff, err := FromEntries(seeds, opts.DefaultPort)
            switch {
            case err != nil:
                logutil.Warnf(opts.Logger, "discovery yielded an unusable flat file: %v", err)
            default:
                err = c.Submit(ctx, ff, "discovery")
                if err == nil || errors.Is(err, ErrAlreadyProvided) { return nil }
                if errors.Is(err, ErrClosed) { return err }
                logutil.Warnf(opts.Logger, "submit discovered flat file: %v", err)
            }
        }
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-ticker.C:
        }
    }
}
