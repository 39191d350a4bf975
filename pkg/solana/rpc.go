package solana

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/lottery-client/pkg/retry"
	"github.com/code-payments/lottery-client/pkg/retry/backoff"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602
)

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

// valueResponse is the envelope of RPC results that are tied to a slot
type valueResponse[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

func newRetrier() retry.Retrier {
	return retry.NewRetrier(
		retry.RetriableErrors(errRateLimited, errServiceError),
		retry.Limit(3),
		retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
	)
}

// call invokes method, retrying rate limited and unhealthy node responses.
// Requests are throttled per method by the client's limiter.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		allowed, err := c.limiter.Allow(method)
		if err != nil {
			return err
		} else if !allowed {
			c.log.WithField("method", method).Debug("throttled locally")
			return errRateLimited
		}

		if err := c.client.CallFor(out, method, params...); err != nil {
			return c.classifyError(method, err)
		}
		return nil
	})
	return err
}

// classifyError maps transient failures onto the retriable sentinel errors,
// leaving everything else untouched for callers to inspect.
func (c *client) classifyError(method string, err error) error {
	var code int
	switch typed := err.(type) {
	case *jsonrpc.HTTPError:
		code = typed.Code
	case *jsonrpc.RPCError:
		if typed.Code == rpcNodeUnhealthyCode {
			return errServiceError
		}
		code = typed.Code
	default:
		return err
	}

	switch {
	case code == http.StatusTooManyRequests:
		c.log.WithField("method", method).Warn("rate limited by rpc node")
		return errRateLimited
	case code >= http.StatusInternalServerError:
		return errServiceError
	}
	return err
}
