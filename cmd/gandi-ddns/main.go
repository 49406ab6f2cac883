package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libdns/libdns"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	ddns "github.com/Travis-Britz/gandi-ddns"
	"github.com/Travis-Britz/gandi-ddns/internal/config"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitUpdated = 2
)

var flags = struct {
	Config  string
	Verbose bool
	Force   bool
	DryRun  bool
	IPv4    string
	IPv6    string
}{}

var (
	logger  = newLogger(false)
	updated bool
)

var rootCmd = &cobra.Command{
	Use:   "gandi-ddns",
	Short: "Update Gandi LiveDNS records with this host's current IP addresses",
	Long: `gandi-ddns discovers the host's public IPv4 and IPv6 addresses and updates the
A and AAAA records of the configured subdomains when they differ.

It runs once and exits; schedule it with cron or a systemd timer.
Exit status is 2 when at least one record was changed, 0 when nothing
changed, and 1 on error.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(flags.Verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		updated, err = run(cmd.Context())
		return err
	},
}

var addrsCmd = &cobra.Command{
	Use:   "addrs",
	Short: "Print the discovered addresses without contacting the DNS provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printAddrs(cmd.Context())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.Config, "config", "c", "", "Path to the config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Increase output verbosity")
	pf.StringVar(&flags.IPv4, "ipv4", "", "IPv4 address to set instead of discovering it")
	pf.StringVar(&flags.IPv6, "ipv6", "", "IPv6 address to set instead of discovering it")

	rootCmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "Force an update even if records already match")
	rootCmd.Flags().BoolVarP(&flags.DryRun, "dryrun", "d", false, "Do a dry-run: read and compare, but never write")

	rootCmd.AddCommand(addrsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var fatal *ddns.FatalError
		if errors.As(err, &fatal) {
			logger.Error("aborting: DNS state may be inconsistent", zap.Error(err))
		} else {
			logger.Error(err.Error())
		}
	}
	logger.Sync()
	os.Exit(exitCode(updated, err))
}

func exitCode(updated bool, err error) int {
	switch {
	case err != nil:
		return exitFatal
	case updated:
		return exitUpdated
	default:
		return exitOK
	}
}

func newLogger(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func run(ctx context.Context) (bool, error) {
	t0 := time.Now()
	logger.Debug("verbosity turned on")
	if flags.DryRun {
		logger.Info("performing a dry-run")
	}

	cfg, httpClient, err := setup()
	if err != nil {
		return false, err
	}
	key, err := apiKey(ctx, cfg, httpClient)
	if err != nil {
		return false, err
	}
	api, err := ddns.NewLiveDNS(cfg.APIEndpoint, key)
	if err != nil {
		return false, fmt.Errorf("error creating LiveDNS provider: %w", err)
	}
	client, err := newClient(cfg, httpClient, api)
	if err != nil {
		return false, err
	}

	updated, err := client.Run(ctx)
	logger.Debug("run finished", zap.Duration("took", time.Since(t0)), zap.Bool("updated", updated))
	return updated, err
}

func printAddrs(ctx context.Context) error {
	cfg, httpClient, err := setup()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, httpClient, offline{})
	if err != nil {
		return err
	}
	addrs := client.Discover(ctx)
	for _, a := range []struct {
		family ddns.Family
		addr   fmt.Stringer
		ok     bool
	}{
		{ddns.IPv4, addrs.IPv4, addrs.IPv4.IsValid()},
		{ddns.IPv6, addrs.IPv6, addrs.IPv6.IsValid()},
	} {
		if a.ok {
			fmt.Printf("%s\t%s\n", a.family, a.addr)
		} else {
			fmt.Printf("%s\tnone\n", a.family)
		}
	}
	return nil
}

func setup() (*config.Config, *http.Client, error) {
	path := config.Path(flags.Config)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("config is valid", zap.String("path", path), zap.Int("domains", len(cfg.Domains)))

	httpClient := ddns.NewHTTPClient(ddns.HTTPOptions{
		Timeout:       cfg.Timeout,
		Retries:       cfg.Retries,
		BackoffFactor: cfg.Backoff(),
		RetryStatuses: cfg.RetryStatuses,
		Logger:        logger,
	})
	return cfg, httpClient, nil
}

// apiKey reads the configured key, running the interactive setup when the key file is missing.
func apiKey(ctx context.Context, cfg *config.Config, httpClient *http.Client) (string, error) {
	key, err := cfg.Key()
	if errors.Is(err, config.ErrNoKeyFile) && term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Info("key file does not exist", zap.String("path", cfg.APIKeyFile))
		if key, err = runSetup(ctx, cfg, httpClient); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	logger.Debug("successfully read api key")
	return key, nil
}

func newClient(cfg *config.Config, httpClient *http.Client, p ddns.Provider) (*ddns.Client, error) {
	v4, v6, err := resolvers(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ddns.New(cfg.Domains,
		ddns.UsingProvider(p),
		ddns.UsingIPv4Resolver(v4),
		ddns.UsingIPv6Resolver(v6),
		ddns.WithTTL(cfg.TTLDuration()),
		ddns.ForceUpdate(flags.Force),
		ddns.DryRun(flags.DryRun),
		ddns.WithLogger(logger),
		ddns.UsingHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating ddns.Client: %w", err)
	}
	return client, nil
}

// offline stands in for the provider when only discovery is wanted.
type offline struct{}

var errOffline = errors.New("provider not available in discovery-only mode")

func (offline) ZoneID(context.Context, string) (string, error) { return "", errOffline }
func (offline) GetRecord(context.Context, string, string, string) (libdns.RR, error) {
	return libdns.RR{}, errOffline
}
func (offline) SetRecord(context.Context, string, libdns.Address) error { return errOffline }

// resolvers picks the discovery method of each family.
// Command line addresses win; for IPv6 a named interface wins over an echo service.
// A nil Resolver means the family is not managed.
func resolvers(cfg *config.Config) (v4, v6 ddns.Resolver, err error) {
	switch {
	case flags.IPv4 != "":
		v4, err = ddns.FromString(ddns.IPv4, flags.IPv4)
	case cfg.IfConfig4 != "":
		v4, err = ddns.WebResolver(ddns.IPv4, cfg.IfConfig4)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ipv4: %w", err)
	}

	switch {
	case flags.IPv6 != "":
		v6, err = ddns.FromString(ddns.IPv6, flags.IPv6)
	case cfg.Interface != "":
		v6 = ddns.InterfaceResolver(cfg.Interface)
	case cfg.IfConfig6 != "":
		v6, err = ddns.WebResolver(ddns.IPv6, cfg.IfConfig6)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ipv6: %w", err)
	}
	return v4, v6, nil
}
