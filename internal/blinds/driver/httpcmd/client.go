package httpcmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 3 * time.Second

// Commander issues a single request against the blinds controller.
type Commander interface {
	Send(ctx context.Context, url, method string) ([]byte, error)
}

// NetworkError is returned for transport failures and non-2xx responses.
// StatusCode is 0 when no response was received.
type NetworkError struct {
	StatusCode int
	Cause      error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("controller responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("controller request failed: %s", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err was caused by the request deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Send performs exactly one request. There are no retries.
func (c *Client) Send(ctx context.Context, url, method string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s request", method, url)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.Debugf("%s %s: status %d", method, url, resp.StatusCode)
		return nil, &NetworkError{StatusCode: resp.StatusCode, Cause: errors.Errorf("unexpected status %s", resp.Status)}
	}
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Cause: err}
	}

	return body, nil
}

type PoolProxy struct {
	c    Commander
	pool chan struct{}
}

// NewPoolProxy bounds the number of in-flight requests to cap(pool). The
// same pool may be shared by several proxies.
func NewPoolProxy(c Commander, pool chan struct{}) *PoolProxy {
	return &PoolProxy{c: c, pool: pool}
}

func (p *PoolProxy) Send(ctx context.Context, url, method string) ([]byte, error) {
	select {
	case p.pool <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() {
		<-p.pool
	}()

	return p.c.Send(ctx, url, method)
}
