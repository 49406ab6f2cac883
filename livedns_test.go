package ddns_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/libdns/libdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddns "github.com/Travis-Britz/gandi-ddns"
)

const testKey = "s3cr3t"

func newTestLiveDNS(t *testing.T, h http.HandlerFunc) *ddns.LiveDNS {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != testKey {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"code":403,"message":"Access was denied"}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	g, err := ddns.NewLiveDNS(srv.URL+"/api/v5", testKey)
	require.NoError(t, err)
	g.SetHTTPClient(srv.Client())
	return g
}

func TestLiveDNSZoneID(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v5/domains/example.com", r.URL.Path)
		io.WriteString(w, `{"fqdn":"example.com","zone_uuid":"f05ac8b8-e447-11e7-8e33-00163ec31f40"}`)
	})
	zone, err := g.ZoneID(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "f05ac8b8-e447-11e7-8e33-00163ec31f40", zone)
}

func TestLiveDNSZoneIDNotFound(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"code":404,"message":"The resource could not be found.","object":"HTTPNotFound","cause":"Not Found"}`)
	})
	_, err := g.ZoneID(context.Background(), "example.com")
	var apiErr *ddns.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "The resource could not be found.", apiErr.Message)
	assert.Contains(t, err.Error(), "404")
}

func TestLiveDNSAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wrong", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g, err := ddns.NewLiveDNS(srv.URL, "wrong")
	require.NoError(t, err)
	err = g.VerifyKey(context.Background())
	var apiErr *ddns.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "Forbidden", "falls back to the status text without a provider message")
}

func TestLiveDNSGetRecord(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/zones/zone-1/records/home/A", r.URL.Path)
		io.WriteString(w, `{"rrset_name":"home","rrset_type":"A","rrset_ttl":10800,"rrset_values":["203.0.113.5","203.0.113.6"]}`)
	})
	rr, err := g.GetRecord(context.Background(), "zone-1", "home", "A")
	require.NoError(t, err)
	assert.Equal(t, libdns.RR{Name: "home", TTL: 3 * time.Hour, Type: "A", Data: "203.0.113.5"}, rr)
}

func TestLiveDNSGetRecordApex(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/zones/zone-1/records/@/AAAA", r.URL.Path)
		io.WriteString(w, `{"rrset_ttl":300,"rrset_values":["2001:db8::1"]}`)
	})
	rr, err := g.GetRecord(context.Background(), "zone-1", "", "AAAA")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", rr.Data)
}

func TestLiveDNSGetRecordErrors(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/zones/zone-1/records/empty/A":
			io.WriteString(w, `{"rrset_ttl":300,"rrset_values":[]}`)
		case "/api/v5/zones/zone-1/records/garbled/A":
			io.WriteString(w, `<html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Record not found"}`)
		}
	})

	_, err := g.GetRecord(context.Background(), "zone-1", "empty", "A")
	require.Error(t, err)
	var apiErr *ddns.APIError
	assert.False(t, errors.As(err, &apiErr))

	_, err = g.GetRecord(context.Background(), "zone-1", "garbled", "A")
	require.Error(t, err)

	_, err = g.GetRecord(context.Background(), "zone-1", "missing", "A")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Record not found", apiErr.Message)
}

func TestLiveDNSSetRecord(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v5/zones/zone-1/records/home/A", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"rrset_ttl":    float64(10800),
			"rrset_values": []any{"203.0.113.5"},
		}, body)

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"DNS Record Created"}`)
	})
	err := g.SetRecord(context.Background(), "zone-1", libdns.Address{
		Name: "home",
		TTL:  3 * time.Hour,
		IP:   netip.MustParseAddr("203.0.113.5"),
	})
	require.NoError(t, err)
}

func TestLiveDNSSetRecordIPv6Apex(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/zones/zone-1/records/@/AAAA", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	err := g.SetRecord(context.Background(), "zone-1", libdns.Address{
		TTL: 300 * time.Second,
		IP:  netip.MustParseAddr("2001:db8::1"),
	})
	require.NoError(t, err)
}

func TestLiveDNSSetRecordRejected(t *testing.T) {
	g := newTestLiveDNS(t, func(w http.ResponseWriter, r *http.Request) {
		// 200 is not success for an update
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"message":"nothing happened"}`)
	})
	err := g.SetRecord(context.Background(), "zone-1", libdns.Address{
		Name: "home",
		TTL:  300 * time.Second,
		IP:   netip.MustParseAddr("203.0.113.5"),
	})
	var apiErr *ddns.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "nothing happened", apiErr.Message)
}

func TestNewLiveDNS(t *testing.T) {
	_, err := ddns.NewLiveDNS("", "")
	assert.Error(t, err, "empty key")
	_, err = ddns.NewLiveDNS("/api/v5", "key")
	assert.Error(t, err, "relative endpoint")
	_, err = ddns.NewLiveDNS("", "key")
	assert.NoError(t, err, "default endpoint")
}
