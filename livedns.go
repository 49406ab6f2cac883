package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/libdns/libdns"
	"go.uber.org/zap"
)

// DefaultEndpoint is the base URL of the LiveDNS v5 REST API.
const DefaultEndpoint = "https://dns.api.gandi.net/api/v5"

// apexName is the record name LiveDNS uses for the bare domain.
const apexName = "@"

// NewLiveDNS constructs a Provider for the LiveDNS REST API at endpoint,
// authenticating every request with apiKey in the X-Api-Key header.
func NewLiveDNS(endpoint, apiKey string) (*LiveDNS, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}
	if apiKey == "" {
		return nil, errors.New("api key cannot be empty")
	}
	return &LiveDNS{
		endpoint: u,
		apiKey:   apiKey,
		logger:   discard,
	}, nil
}

// LiveDNS implements ddns.Provider.
//
// It should be constructed using NewLiveDNS.
type LiveDNS struct {
	endpoint   *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func (g *LiveDNS) SetLogger(logger *zap.Logger)       { g.logger = logger }
func (g *LiveDNS) SetHTTPClient(client *http.Client) { g.httpClient = client }

type domainInfo struct {
	FQDN     string `json:"fqdn"`
	ZoneUUID string `json:"zone_uuid"`
}

type rrset struct {
	Name   string   `json:"rrset_name,omitempty"`
	Type   string   `json:"rrset_type,omitempty"`
	TTL    int      `json:"rrset_ttl"`
	Values []string `json:"rrset_values"`
}

type apiMessage struct {
	Message string `json:"message"`
}

// ZoneID returns the UUID of the zone attached to domain.
func (g *LiveDNS) ZoneID(ctx context.Context, domain string) (string, error) {
	const op = "get zone UUID"
	resp, err := g.do(ctx, http.MethodGet, nil, "domains", domain)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(op, resp)
	}
	var info domainInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("%s: error decoding response: %w", op, err)
	}
	if info.ZoneUUID == "" {
		return "", fmt.Errorf("%s: response for %s has no zone_uuid", op, domain)
	}
	g.logger.Debug("got zone UUID", zap.String("domain", domain), zap.String("zone", info.ZoneUUID))
	return info.ZoneUUID, nil
}

// GetRecord returns the name/rtype record in zone.
// Data holds the first of the record's values.
func (g *LiveDNS) GetRecord(ctx context.Context, zone, name, rtype string) (libdns.RR, error) {
	const op = "get record"
	resp, err := g.do(ctx, http.MethodGet, nil, "zones", zone, "records", recordName(name), rtype)
	if err != nil {
		return libdns.RR{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return libdns.RR{}, apiError(op, resp)
	}
	var rs rrset
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return libdns.RR{}, fmt.Errorf("%s: error decoding response: %w", op, err)
	}
	if len(rs.Values) == 0 {
		return libdns.RR{}, fmt.Errorf("%s: %s record %q has no values", op, rtype, name)
	}
	return libdns.RR{
		Name: name,
		TTL:  time.Duration(rs.TTL) * time.Second,
		Type: rtype,
		Data: rs.Values[0],
	}, nil
}

// SetRecord replaces the TTL and values of the record described by addr with addr.TTL and addr.IP.
// The record type follows the address family.
func (g *LiveDNS) SetRecord(ctx context.Context, zone string, addr libdns.Address) error {
	const op = "update record"
	rr := addr.RR()
	body := rrset{
		TTL:    int(rr.TTL / time.Second),
		Values: []string{rr.Data},
	}
	resp, err := g.do(ctx, http.MethodPut, body, "zones", zone, "records", recordName(rr.Name), rr.Type)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return apiError(op, resp)
	}
	var m apiMessage
	_ = json.NewDecoder(resp.Body).Decode(&m)
	g.logger.Debug("record updated",
		zap.Int("status", resp.StatusCode),
		zap.String("message", m.Message),
		zap.String("name", rr.Name),
		zap.String("type", rr.Type),
	)
	return nil
}

// VerifyKey checks that the API key is accepted by listing the account's domains.
func (g *LiveDNS) VerifyKey(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodGet, nil, "domains")
	if err != nil {
		return fmt.Errorf("verify api key: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("verify api key", resp)
	}
	return nil
}

func (g *LiveDNS) do(ctx context.Context, method string, body any, path ...string) (*http.Response, error) {
	escaped := make([]string, len(path))
	for i, p := range path {
		escaped[i] = url.PathEscape(p)
	}
	u := g.endpoint.JoinPath(escaped...)

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpclient := g.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	g.logger.Debug("api request", zap.String("method", method), zap.String("url", u.Redacted()))
	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

func apiError(op string, resp *http.Response) *APIError {
	e := &APIError{Op: op, StatusCode: resp.StatusCode}
	var m apiMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&m); err == nil {
		e.Message = m.Message
	}
	return e
}

func recordName(name string) string {
	if name == "" {
		return apexName
	}
	return name
}
