package ddns

import (
	"fmt"
	"net/http"
)

// APIError is a non-success response from the DNS provider.
type APIError struct {
	Op         string // e.g. "get zone", "update record"
	StatusCode int
	Message    string // provider-supplied message, if any
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP status %d: %s", e.Op, e.StatusCode, msg)
}

// FatalError reports a provider failure that leaves DNS state unknown or inconsistent with intent.
// Run stops at the first one; the caller should abort.
type FatalError struct {
	Domain string
	Name   string // empty for zone lookups
	Type   string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("domain %s: %s", e.Domain, e.Err)
	}
	return fmt.Sprintf("domain %s: %s record %q: %s", e.Domain, e.Type, e.Name, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
