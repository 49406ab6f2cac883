package ddns

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// DefaultRetryStatuses are the response codes that are retried when HTTPOptions.RetryStatuses is nil.
var DefaultRetryStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusGatewayTimeout,
}

// HTTPOptions configures the client returned by NewHTTPClient.
type HTTPOptions struct {
	// Timeout bounds each individual attempt, not the whole retry sequence.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first one.
	Retries int
	// BackoffFactor is the delay before the first retry.
	// It doubles for every retry after that.
	BackoffFactor time.Duration
	// RetryStatuses lists the response codes that trigger a retry.
	RetryStatuses []int
	Logger        *zap.Logger
}

// NewHTTPClient returns the single *http.Client shared by every request of a run.
//
// Connection failures and responses with a status in opts.RetryStatuses are retried up to opts.Retries times,
// waiting BackoffFactor*2^(n-1) before retry n.
// When retries are exhausted the last response (or error) is returned unchanged,
// so callers see the provider's final status and message.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	logger := opts.Logger
	if logger == nil {
		logger = discard
	}
	statuses := opts.RetryStatuses
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = opts.Timeout

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.Logger = newRetryLogger(logger)
	rc.RetryMax = retries
	rc.CheckRetry = retryPolicy(statuses)
	rc.Backoff = ExponentialBackoff(opts.BackoffFactor)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

// ExponentialBackoff returns a retryablehttp.Backoff that waits factor*2^attemptNum,
// where attemptNum is 0 before the first retry.
func ExponentialBackoff(factor time.Duration) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		if factor <= 0 {
			return 0
		}
		mult := math.Pow(2, float64(attemptNum))
		wait := float64(factor) * mult
		if wait > float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(wait)
	}
}

func retryPolicy(statuses []int) retryablehttp.CheckRetry {
	retryable := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		retryable[s] = true
	}
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			// connection failures; the default policy refuses to retry
			// unrecoverable ones such as bad schemes and certificate errors
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return retryable[resp.StatusCode], nil
	}
}
