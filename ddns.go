package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/libdns/libdns"
	"go.uber.org/zap"
)

// DefaultTTL is the TTL written to records when WithTTL is not used.
const DefaultTTL = 3 * time.Hour

// Domain is a registered domain and the labels of the records managed under it.
// An empty label (or "@") is the bare domain.
type Domain struct {
	Name       string
	Subdomains []string
}

// New returns a Client reconciling the address records of domains.
//
// A provider is required, e.g. UsingLiveDNS.
// Without UsingIPv4Resolver or UsingIPv6Resolver the corresponding family is never touched.
func New(domains []Domain, options ...clientOption) (*Client, error) {
	if len(domains) == 0 {
		return nil, errors.New("ddns.New: at least one domain is required")
	}
	for _, d := range domains {
		if d.Name == "" {
			return nil, errors.New("ddns.New: domain cannot be empty")
		}
	}
	c := &Client{
		domains: domains,
		ttl:     DefaultTTL,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered - use ddns.UsingLiveDNS or ddns.UsingProvider")
	}

	// this lets us propagate the logger and http client to dependencies registered after WithLogger or UsingHTTPClient
	withLogger(c.logger)(c)
	if c.httpClient != nil {
		withHTTPClient(c.httpClient)(c)
	}
	return c, nil
}

type clientOption func(*Client) error

// UsingLiveDNS registers the LiveDNS API at endpoint as the provider.
// An empty endpoint means DefaultEndpoint.
func UsingLiveDNS(endpoint, apiKey string) clientOption {
	return func(c *Client) (err error) {
		if c.provider, err = NewLiveDNS(endpoint, apiKey); err != nil {
			return fmt.Errorf("ddns.UsingLiveDNS: error creating LiveDNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers an arbitrary Provider implementation.
func UsingProvider(p Provider) clientOption {
	return func(c *Client) error {
		if p == nil {
			return errors.New("provider cannot be nil")
		}
		c.provider = p
		return nil
	}
}

// UsingIPv4Resolver sets how the current IPv4 address is discovered. A nil resolver disables A records.
func UsingIPv4Resolver(r Resolver) clientOption {
	return func(c *Client) error {
		c.v4 = r
		return nil
	}
}

// UsingIPv6Resolver sets how the current IPv6 address is discovered. A nil resolver disables AAAA records.
func UsingIPv6Resolver(r Resolver) clientOption {
	return func(c *Client) error {
		c.v6 = r
		return nil
	}
}

// WithTTL sets the TTL written along with updated records.
func WithTTL(ttl time.Duration) clientOption {
	return func(c *Client) error {
		if ttl < time.Second {
			return fmt.Errorf("ttl %s is too short", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// ForceUpdate writes every record even when it already holds the discovered address.
func ForceUpdate(force bool) clientOption {
	return func(c *Client) error {
		c.force = force
		return nil
	}
}

// DryRun performs all reads and comparisons but never writes, logging the changes that would be made instead.
func DryRun(dryRun bool) clientOption {
	return func(c *Client) error {
		c.dryRun = dryRun
		return nil
	}
}

// WithLogger sets the logger for the client and its resolvers and provider.
// Record changes are logged at info, errors at error, and everything else at debug.
func WithLogger(logger *zap.Logger) clientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the *http.Client shared by the resolvers and the provider,
// normally the one returned by NewHTTPClient.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		return nil
	}
}

type setLogger interface {
	SetLogger(*zap.Logger)
}

type setHTTPClient interface {
	SetHTTPClient(*http.Client)
}

func withLogger(logger *zap.Logger) clientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		for _, dep := range []any{c.provider, c.v4, c.v6} {
			if l, ok := dep.(setLogger); ok {
				l.SetLogger(logger)
			}
		}
		return nil
	}
}

func withHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		for _, dep := range []any{c.provider, c.v4, c.v6} {
			if h, ok := dep.(setHTTPClient); ok {
				h.SetHTTPClient(httpclient)
			}
		}
		return nil
	}
}

// Client reconciles DNS records against the discovered addresses.
// It holds no state between runs.
type Client struct {
	provider   Provider
	v4, v6     Resolver
	httpClient *http.Client
	logger     *zap.Logger

	domains []Domain
	ttl     time.Duration
	force   bool
	dryRun  bool
}

// Run discovers the current addresses and updates every record that differs from them
// (or every record, with ForceUpdate).
// It reports whether at least one record was changed.
//
// Domains and subdomains are processed sequentially in their configured order.
// A record that can't be read is treated as differing from the discovered address.
// Failing to resolve a zone (outside of dry-run) or to write a record stops the run with a *FatalError.
func (c *Client) Run(ctx context.Context) (updated bool, err error) {
	addrs := c.Discover(ctx)

	for _, d := range c.domains {
		u, err := c.updateDomain(ctx, d, addrs)
		updated = updated || u
		if err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// Addresses holds the discovered address of each family.
// A zero address means none was discovered.
type Addresses struct {
	IPv4, IPv6 netip.Addr
}

// Discover resolves the current address of each configured family.
// Discovery failures are logged and leave that family without an address.
func (c *Client) Discover(ctx context.Context) Addresses {
	return Addresses{
		IPv4: c.discover(ctx, IPv4, c.v4),
		IPv6: c.discover(ctx, IPv6, c.v6),
	}
}

func (c *Client) discover(ctx context.Context, family Family, r Resolver) netip.Addr {
	if r == nil {
		return netip.Addr{}
	}
	addr, err := r.Resolve(ctx)
	if err != nil {
		c.logger.Error("address discovery failed", zap.Stringer("family", family), zap.Error(err))
		return netip.Addr{}
	}
	if !addr.IsValid() {
		c.logger.Debug("no address discovered", zap.Stringer("family", family))
		return netip.Addr{}
	}
	c.logger.Debug("discovered address", zap.Stringer("family", family), zap.Stringer("address", addr))
	return addr
}

func (c *Client) updateDomain(ctx context.Context, d Domain, addrs Addresses) (updated bool, err error) {
	zone, err := c.provider.ZoneID(ctx, d.Name)
	if err != nil {
		if !c.dryRun {
			c.logger.Error("unable to get zone UUID", zap.String("domain", d.Name), zap.Error(err))
			return false, &FatalError{Domain: d.Name, Err: err}
		}
		c.logger.Debug("dry-run: continuing without zone UUID", zap.String("domain", d.Name), zap.Error(err))
		zone = ""
	}
	c.logger.Debug("updating domain", zap.String("domain", d.Name), zap.String("zone", zone))

	for _, fa := range []struct {
		family Family
		addr   netip.Addr
	}{
		{IPv4, addrs.IPv4},
		{IPv6, addrs.IPv6},
	} {
		if !fa.addr.IsValid() {
			continue
		}
		u, err := c.updateZone(ctx, d, zone, fa.family, fa.addr)
		updated = updated || u
		if err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (c *Client) updateZone(ctx context.Context, d Domain, zone string, family Family, addr netip.Addr) (updated bool, err error) {
	rtype := family.RecordType()
	for _, sub := range d.Subdomains {
		log := c.logger.With(zap.String("domain", d.Name), zap.String("subdomain", recordName(sub)), zap.String("type", rtype))

		current := c.current(ctx, log, zone, sub, rtype)
		if current.matches(addr) && !c.force {
			log.Debug("IP address match - no further action")
			continue
		}
		if c.dryRun {
			log.Info("dry-run: DNS record not modified", zap.Stringer("old", current), zap.Stringer("new", addr))
			continue
		}

		log.Info("updating DNS record", zap.Stringer("old", current), zap.Stringer("new", addr))
		err := c.provider.SetRecord(ctx, zone, libdns.Address{
			Name: sub,
			TTL:  c.ttl,
			IP:   addr,
		})
		if err != nil {
			log.Error("unable to update DNS record", zap.Error(err))
			return updated, &FatalError{Domain: d.Name, Name: recordName(sub), Type: rtype, Err: err}
		}
		log.Debug("IP updated")
		updated = true
	}
	return updated, nil
}

// stored is what a record read yielded: either the record or nothing usable.
type stored struct {
	rr        libdns.RR
	available bool
}

func (s stored) matches(addr netip.Addr) bool {
	if !s.available {
		return false
	}
	rec, err := s.rr.Parse()
	if err != nil {
		return false
	}
	a, ok := rec.(libdns.Address)
	return ok && a.IP.WithZone("") == addr.WithZone("")
}

func (s stored) String() string {
	if !s.available {
		return "unavailable"
	}
	return s.rr.Data
}

func (c *Client) current(ctx context.Context, log *zap.Logger, zone, sub, rtype string) stored {
	if zone == "" {
		// only reachable in dry-run, when the zone could not be resolved
		return stored{}
	}
	rr, err := c.provider.GetRecord(ctx, zone, sub, rtype)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !c.dryRun {
			log.Error("unable to get IP from DNS record", zap.Error(err))
		} else {
			log.Debug("unable to get IP from DNS record", zap.Error(err))
		}
		return stored{}
	}
	log.Debug("checking IP from DNS record", zap.String("value", rr.Data))
	return stored{rr: rr, available: true}
}
