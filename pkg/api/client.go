package api

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/cluster"
    "github.com/amirimatin/assisted-clustering/pkg/flatfile"
)

// StatusResponse is the raw answer of the status route.
type StatusResponse struct {
    Code int
    Body []byte
}

// Formed reports whether the node answered with a cluster status.
func (r StatusResponse) Formed() bool { return r.Code == http.StatusOK }

// Status decodes the body of a 200 answer.
func (r StatusResponse) Status() (*cluster.Status, error) {
    if r.Code != http.StatusOK { return nil, fmt.Errorf("api: no status (HTTP %d)", r.Code) }
    var st cluster.Status
    if err := json.Unmarshal(r.Body, &st); err != nil { return nil, fmt.Errorf("api: decode status: %w", err) }
    return &st, nil
}

// Client talks to the assisted clustering REST API of a node. Each call makes
// a single attempt; callers decide whether to poll.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS switches requests to https with cfg.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    c.transport.TLSClientConfig = cfg
    c.isTLS = cfg != nil
    return c
}

// GetStatus fetches the status route of addr (host:port) and reads the body fully.
func (c *Client) GetStatus(ctx context.Context, addr string) (StatusResponse, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(addr, StatusPath), nil)
    if err != nil { return StatusResponse{}, err }
    req.Header.Set("Content-Type", "text/plain")
    resp, err := c.httpc.Do(req)
    if err != nil { return StatusResponse{}, err }
    defer resp.Body.Close()
    body, err := io.ReadAll(resp.Body)
    if err != nil { return StatusResponse{}, err }
    return StatusResponse{Code: resp.StatusCode, Body: body}, nil
}

// PostFlatFile uploads ff to addr and returns the HTTP status code. Non-2xx
// answers are reported as an error carrying the server message.
func (c *Client) PostFlatFile(ctx context.Context, addr string, ff flatfile.FlatFile) (int, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(addr, FlatFilePath), strings.NewReader(ff.String()))
    if err != nil { return 0, err }
    req.Header.Set("Content-Type", "text/plain")
    resp, err := c.httpc.Do(req)
    if err != nil { return 0, err }
    defer resp.Body.Close()
    if resp.StatusCode/100 != 2 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
        return resp.StatusCode, fmt.Errorf("api: flat file rejected (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
    }
    _, _ = io.Copy(io.Discard, resp.Body)
    return resp.StatusCode, nil
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}
