package discovery

import "context"

// Discovery yields the raw node entries ("host" or "host:port") that make up
// the initial flat file. Implementations cache; an empty result means "not yet".
type Discovery interface {
    Seeds(ctx context.Context) []string
}

// Func adapts a plain function to Discovery.
type Func func(ctx context.Context) []string

func (f Func) Seeds(ctx context.Context) []string { return f(ctx) }
