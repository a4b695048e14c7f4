package cli

import (
    "context"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/assisted-clustering/pkg/api"
    "github.com/amirimatin/assisted-clustering/pkg/bootstrap"
    "github.com/amirimatin/assisted-clustering/pkg/config"
    "github.com/amirimatin/assisted-clustering/pkg/flatfile"
    tracing "github.com/amirimatin/assisted-clustering/pkg/observability/tracing"
    tlsx "github.com/amirimatin/assisted-clustering/pkg/security/tlsconfig"
)

// AddAll attaches run/status/flatfile to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewFlatFileCmd())
}

// NewRootCmd returns a root command carrying every subcommand.
func NewRootCmd(use string) *cobra.Command {
    root := &cobra.Command{
        Use:           use,
        Short:         "assisted clustering node and client",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    AddAll(root)
    return root
}

// NewRunCmd returns the "run" command starting a node. Flags override
// CLUSTERING_* environment variables, which override defaults.
func NewRunCmd() *cobra.Command {
    cfg := config.Default()
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run an assisted clustering node",
        RunE: func(cmd *cobra.Command, args []string) error {
            env, err := config.FromEnv(config.Default())
            if err != nil { return err }
            merged := overlayFlags(cmd, env, cfg)

            ctx, cancel := signalContext()
            defer cancel()

            if merged.Trace {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            node, err := bootstrap.Run(ctx, merged, log.Default())
            if err != nil { return err }
            defer node.Close()

            fmt.Fprintf(cmd.OutOrStdout(), "node running, REST API at %s. Press Ctrl+C to exit.\n", node.API.Addr())
            <-ctx.Done()
            return nil
        },
    }
    f := cmd.Flags()
    f.StringVar(&cfg.Host, "host", cfg.Host, "REST API host")
    f.IntVar(&cfg.Port, "port", cfg.Port, "REST API port")
    f.StringVar(&cfg.NodeID, "id", "", "node id (defaults to the advertised membership address)")
    f.StringVar(&cfg.MemberBind, "mem-bind", cfg.MemberBind, "membership bind addr (host:port)")
    f.StringVar(&cfg.MemberAdvertise, "mem-adv", "", "membership advertise addr (host:port); flat files list this address")
    f.DurationVar(&cfg.JoinRetry, "join-retry", cfg.JoinRetry, "interval between join attempts until the cluster forms")
    f.StringVar(&cfg.Discovery, "discovery", cfg.Discovery, "flat file source besides the REST API: none|file|static|dns")
    f.StringVar(&cfg.FlatFilePath, "flatfile", "", "path or glob of a flat file, used by discovery=file")
    f.StringVar(&cfg.FlatFileEnv, "flatfile-env", "", "ENV var holding CSV nodes; wins over --flatfile")
    f.StringVar(&cfg.SeedsCSV, "nodes", "", "comma-separated nodes (host:port), used by discovery=static")
    f.StringVar(&cfg.DNSNamesCSV, "dns-names", "", "comma-separated DNS names or SRV records (e.g., _clustering._tcp.example.com)")
    f.DurationVar(&cfg.DiscoveryRefresh, "disc-refresh", cfg.DiscoveryRefresh, "discovery cache duration")
    f.DurationVar(&cfg.DiscoveryInterval, "disc-interval", cfg.DiscoveryInterval, "interval between discovery polls")
    f.BoolVar(&cfg.TLS.Enable, "tls-enable", false, "serve the REST API over TLS")
    f.StringVar(&cfg.TLS.CAFile, "tls-ca", "", "CA cert (PEM); requires client certificates when set")
    f.StringVar(&cfg.TLS.CertFile, "tls-cert", "", "server certificate (PEM)")
    f.StringVar(&cfg.TLS.KeyFile, "tls-key", "", "server private key (PEM)")
    f.BoolVar(&cfg.Trace, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    f.BoolVar(&cfg.LogJSON, "log-json", false, "emit JSON log lines")
    return cmd
}

// overlayFlags copies every flag the user set from flags onto base.
func overlayFlags(cmd *cobra.Command, base, flags config.Config) config.Config {
    set := func(name string, apply func()) {
        if cmd.Flags().Changed(name) { apply() }
    }
    c := base
    set("host", func() { c.Host = flags.Host })
    set("port", func() { c.Port = flags.Port })
    set("id", func() { c.NodeID = flags.NodeID })
    set("mem-bind", func() { c.MemberBind = flags.MemberBind })
    set("mem-adv", func() { c.MemberAdvertise = flags.MemberAdvertise })
    set("join-retry", func() { c.JoinRetry = flags.JoinRetry })
    set("discovery", func() { c.Discovery = flags.Discovery })
    set("flatfile", func() { c.FlatFilePath = flags.FlatFilePath })
    set("flatfile-env", func() { c.FlatFileEnv = flags.FlatFileEnv })
    set("nodes", func() { c.SeedsCSV = flags.SeedsCSV })
    set("dns-names", func() { c.DNSNamesCSV = flags.DNSNamesCSV })
    set("disc-refresh", func() { c.DiscoveryRefresh = flags.DiscoveryRefresh })
    set("disc-interval", func() { c.DiscoveryInterval = flags.DiscoveryInterval })
    set("tls-enable", func() { c.TLS.Enable = flags.TLS.Enable })
    set("tls-ca", func() { c.TLS.CAFile = flags.TLS.CAFile })
    set("tls-cert", func() { c.TLS.CertFile = flags.TLS.CertFile })
    set("tls-key", func() { c.TLS.KeyFile = flags.TLS.KeyFile })
    set("trace", func() { c.Trace = flags.Trace })
    set("log-json", func() { c.LogJSON = flags.LogJSON })
    return c
}

type clientFlags struct {
    addr          string
    timeout       time.Duration
    tlsEnable     bool
    tlsSkip       bool
    tlsCA         string
    tlsCert       string
    tlsKey        string
    tlsServerName string
}

func (cf *clientFlags) register(cmd *cobra.Command) {
    cmd.Flags().StringVar(&cf.addr, "addr", "localhost:8080", "REST API address of a node (host:port)")
    cmd.Flags().DurationVar(&cf.timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&cf.tlsEnable, "tls-enable", false, "use https")
    cmd.Flags().StringVar(&cf.tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&cf.tlsCert, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&cf.tlsKey, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().BoolVar(&cf.tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&cf.tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
}

func (cf *clientFlags) client() (*api.Client, error) {
    cli := api.NewClient(cf.timeout)
    if !cf.tlsEnable { return cli, nil }
    topts := tlsx.Options{Enable: true, CAFile: cf.tlsCA, CertFile: cf.tlsCert, KeyFile: cf.tlsKey, InsecureSkipVerify: cf.tlsSkip, ServerName: cf.tlsServerName}
    cfg, err := topts.Client()
    if err != nil { return nil, fmt.Errorf("tls client config: %w", err) }
    return cli.UseTLS(cfg), nil
}

// NewStatusCmd returns the "status" command. It prints the HTTP code, then
// the JSON status when the cluster has formed.
func NewStatusCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch the cluster status of a node",
        RunE: func(cmd *cobra.Command, args []string) error {
            cli, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
            defer cancel()
            st, err := cli.GetStatus(ctx, cf.addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            out := cmd.OutOrStdout()
            if !st.Formed() {
                fmt.Fprintf(out, "%d not formed\n", st.Code)
                return nil
            }
            fmt.Fprintf(out, "%d %s", st.Code, st.Body)
            if len(st.Body) == 0 || st.Body[len(st.Body)-1] != '\n' { fmt.Fprintln(out) }
            return nil
        },
    }
    cf.register(cmd)
    return cmd
}

// NewFlatFileCmd returns the "flatfile" command uploading a flat file read
// from a path, or stdin when the path is "-".
func NewFlatFileCmd() *cobra.Command {
    var (
        cf          clientFlags
        defaultPort int
    )
    cmd := &cobra.Command{
        Use:   "flatfile <path|->",
        Short: "Provide a node with its flat file",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            var r io.Reader = cmd.InOrStdin()
            if args[0] != "-" {
                f, err := os.Open(args[0])
                if err != nil { return err }
                defer f.Close()
                r = f
            }
            ff, err := flatfile.Parse(r, defaultPort)
            if err != nil { return err }
            cli, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
            defer cancel()
            code, err := cli.PostFlatFile(ctx, cf.addr, ff)
            if err != nil { return err }
            fmt.Fprintf(cmd.OutOrStdout(), "%d accepted %d nodes\n", code, len(ff.Nodes))
            return nil
        },
    }
    cf.register(cmd)
    cmd.Flags().IntVar(&defaultPort, "default-port", 7946, "port for entries without one; 0 makes ports mandatory")
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        ch := make(chan os.Signal, 1)
        signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
        select {
        case <-ch:
            cancel()
        case <-ctx.Done():
        }
        signal.Stop(ch)
    }()
    return ctx, cancel
}
