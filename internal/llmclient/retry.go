package llmclient

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetryElapsed caps how long a single Generate call keeps retrying.
var maxRetryElapsed = 2 * time.Minute

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxRetryElapsed
	b.MaxInterval = 30 * time.Second
	return b
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}
