package flatfile

import (
    "bufio"
    "errors"
    "fmt"
    "io"
    "net"
    "sort"
    "strconv"
    "strings"
)

var (
    ErrEmpty        = errors.New("flatfile: no nodes")
    ErrInvalidEntry = errors.New("flatfile: invalid entry")
)

// FlatFile is the list of nodes, as host:port, that should form one cluster.
// Nodes is normalized: unique and sorted.
type FlatFile struct {
    Nodes []string
}

// String renders the flat file in its wire form, one node per line.
func (f FlatFile) String() string {
    if len(f.Nodes) == 0 { return "" }
    return strings.Join(f.Nodes, "\n") + "\n"
}

// Parse reads a text flat file: one node per line, comma-separated entries
// allowed, blank lines and "#" comments skipped. Entries without a port get
// defaultPort; with defaultPort <= 0 a port is mandatory.
func Parse(r io.Reader, defaultPort int) (FlatFile, error) {
    var entries []string
    br := bufio.NewReader(r)
    for {
        // lines have no length limit; callers bound the whole input
        raw, err := br.ReadString('\n')
        if line := strings.TrimSpace(raw); line != "" && !strings.HasPrefix(line, "#") {
            entries = append(entries, strings.Split(line, ",")...)
        }
        if errors.Is(err, io.EOF) { break }
        if err != nil { return FlatFile{}, fmt.Errorf("flatfile: read: %w", err) }
    }
    return FromEntries(entries, defaultPort)
}

// FromEntries normalizes raw entries (e.g. from discovery) into a FlatFile.
func FromEntries(entries []string, defaultPort int) (FlatFile, error) {
    set := make(map[string]struct{}, len(entries))
    for _, e := range entries {
        e = strings.TrimSpace(e)
        if e == "" { continue }
        hp, err := normalize(e, defaultPort)
        if err != nil { return FlatFile{}, err }
        set[hp] = struct{}{}
    }
    if len(set) == 0 { return FlatFile{}, ErrEmpty }
    nodes := make([]string, 0, len(set))
    for n := range set { nodes = append(nodes, n) }
    sort.Strings(nodes)
    return FlatFile{Nodes: nodes}, nil
}

func normalize(entry string, defaultPort int) (string, error) {
    host, portStr, err := net.SplitHostPort(entry)
    if err == nil && portStr == "" {
        return "", fmt.Errorf("%w: %q: empty port", ErrInvalidEntry, entry)
    }
    if err != nil {
        // bare host or bare IPv6 literal
        host, portStr = strings.Trim(entry, "[]"), ""
        if strings.Contains(host, ":") && net.ParseIP(host) == nil {
            return "", fmt.Errorf("%w: %q", ErrInvalidEntry, entry)
        }
    }
    if host == "" || strings.ContainsAny(host, " \t/") {
        return "", fmt.Errorf("%w: %q", ErrInvalidEntry, entry)
    }
    port := defaultPort
    if portStr != "" {
        if port, err = strconv.Atoi(portStr); err != nil {
            return "", fmt.Errorf("%w: %q: bad port", ErrInvalidEntry, entry)
        }
    }
    if port <= 0 || port > 65535 {
        return "", fmt.Errorf("%w: %q: port out of range", ErrInvalidEntry, entry)
    }
    return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
