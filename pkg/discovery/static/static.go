package static

import (
    "context"
    "strings"

    "github.com/amirimatin/assisted-clustering/pkg/discovery"
)

type staticSeeds struct {
    seeds []string
}

func (s *staticSeeds) Seeds(context.Context) []string { return append([]string(nil), s.seeds...) }

// New returns a Discovery that always yields the given entries.
func New(seeds ...string) discovery.Discovery {
    cleaned := make([]string, 0, len(seeds))
    for _, v := range seeds {
        if v = strings.TrimSpace(v); v != "" { cleaned = append(cleaned, v) }
    }
    return &staticSeeds{seeds: cleaned}
}

// Parse splits a comma-separated list, dropping blanks.
func Parse(csv string) []string {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}
