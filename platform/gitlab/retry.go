package gitlab

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	headerRateRemaining = "RateLimit-Remaining"
	headerRetryAfter    = "Retry-After"
)

// checkRetry retries what the GitHub client retries: 502
// and rate-limited 403 responses, plus the 429 and 5xx
// responses client-go retries by default. Transport
// errors follow retryablehttp's default policy.
func checkRetry(
	ctx context.Context,
	resp *http.Response,
	err error,
) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil || resp == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return isRateLimited(resp), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, nil
	case resp.StatusCode == http.StatusNotImplemented:
		return false, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, nil
	}

	return false, nil
}

// isRateLimited reports whether a 403 carries the rate
// limit headers GitLab sends once the quota is spent.
func isRateLimited(resp *http.Response) bool {
	return resp.Header.Get(headerRateRemaining) == "0" ||
		resp.Header.Get(headerRetryAfter) != ""
}
