package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// maxEchoBody caps how much of an echo service's response is read.
// Anything longer than a few lines can't be an address anyway.
const maxEchoBody = 1 << 10

// WebResolver constructs a resolver which asks an external "echo IP" web service for the public address of family.
//
// The service must speak http and reply "200 OK" with the address as the response body.
// Surrounding whitespace is trimmed.
// A body that is out of the family's length bounds, or is not an address of the family,
// resolves to no address rather than an error:
// the family is then skipped for the run.
//
// Use a service endpoint that answers over the wanted family only, e.g. https://api6.ipify.org for IPv6.
func WebResolver(family Family, serviceURL string) (Resolver, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q in %s", u.Scheme, serviceURL)
	}
	return &webResolver{family: family, serviceURL: u, logger: discard}, nil
}

type webResolver struct {
	family     Family
	serviceURL *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

func (wr *webResolver) SetLogger(logger *zap.Logger)       { wr.logger = logger }
func (wr *webResolver) SetHTTPClient(client *http.Client) { wr.httpClient = client }

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	body, err := wr.lookup(ctx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s lookup via %s: %w", wr.family, wr.serviceURL.Redacted(), err)
	}
	wr.logger.Debug("checking dynamic IP",
		zap.Stringer("family", wr.family),
		zap.String("service", wr.serviceURL.Redacted()),
		zap.String("response", body),
	)

	addr := wr.family.ParseAddr(body)
	if !addr.IsValid() {
		wr.logger.Error("ignoring discovered address with incorrect length or format",
			zap.Stringer("family", wr.family),
			zap.String("address", body),
		)
	}
	return addr, nil
}

func (wr *webResolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wr.serviceURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http request returned %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
