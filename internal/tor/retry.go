package tor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how the proxy layer retries a request.
// Total attempts are 1 + MaxRetries; the wait before retry n is
// BackoffFactor * 2^(n-1).
type RetryPolicy struct {
	MaxRetries    int
	BackoffFactor time.Duration
	StatusCodes   []int
}

// DefaultRetryPolicy retries three times on throttling and gateway errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BackoffFactor: time.Second,
		StatusCodes:   []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}
}

// Retriable reports whether status is in the retriable set.
func (p RetryPolicy) Retriable(status int) bool {
	return slices.Contains(p.StatusCodes, status)
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BackoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BackoffFactor << 10
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// errRetriableStatus marks an attempt that got a response worth retrying.
var errRetriableStatus = errors.New("retriable status")

// RetryTransport retries transport errors and retriable statuses with
// exponential backoff. When retries run out on a retriable status the last
// response is returned as is, so the caller sees the real status code.
type RetryTransport struct {
	Base      http.RoundTripper
	Policy    RetryPolicy
	UserAgent string
	Logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := req.Context()
	var (
		resp    *http.Response
		last    *http.Response
		attempt int
	)

	op := func() error {
		attempt++
		if last != nil {
			drainAndClose(last)
			last = nil
		}

		r, err := t.prepare(req)
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err := base.RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if t.Policy.Retriable(res.StatusCode) {
			last = res
			return fmt.Errorf("%w: %d", errRetriableStatus, res.StatusCode)
		}
		resp = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying proxied request",
			"url", req.URL.String(),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(t.Policy.backOff(), ctx), notify)
	if err == nil {
		return resp, nil
	}
	if last != nil && errors.Is(err, errRetriableStatus) {
		return last, nil
	}
	if last != nil {
		drainAndClose(last)
	}
	return nil, err
}

// prepare clones req for one attempt, rewinding the body if there is one.
func (t *RetryTransport) prepare(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	if t.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	return r, nil
}

func drainAndClose(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10)) //nolint:errcheck
	res.Body.Close()                                             //nolint:errcheck,gosec
}
