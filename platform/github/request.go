package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v68/github"
)

// AppModeAccept is the media type prepended to the Accept
// header of every request made in GitHub App mode.
const AppModeAccept = "application/vnd.github.machine-man-preview+json"

const (
	defaultMaxRetries     = 5
	defaultRateLimitDelay = time.Second
	maxRateLimitDelay     = time.Minute
)

// rateLimitMessages are the fragments of a 403 message
// that mark it as transient.
var rateLimitMessages = []string{
	"API rate limit exceeded",
	"abuse detection mechanism",
}

// RequestOptions carries the optional parts of a call
// made through Invoke.
type RequestOptions struct {
	// Accept overrides the go-github default media type.
	Accept string
	// Body is JSON-encoded as the request payload.
	Body any
}

// Retry describes the failure preceding a retry.
type Retry struct {
	// Attempt is the 1-based retry number.
	Attempt int
	// RateLimited tells a rate-limit or abuse-detection
	// 403 apart from a 502.
	RateLimited bool
	// After is the wait the host asked for through
	// X-RateLimit-Reset or Retry-After, 0 when none.
	After time.Duration
}

// Backoff returns how long to wait before a retry.
type Backoff func(r Retry) time.Duration

// DefaultBackoff retries 502 responses immediately and
// rate-limited ones after an exponential delay starting
// at one second, or the wait the host asked for when
// longer. Both are capped at one minute.
func DefaultBackoff(r Retry) time.Duration {
	if !r.RateLimited || r.Attempt < 1 {
		return 0
	}

	d := defaultRateLimitDelay
	for i := 1; i < r.Attempt && d < maxRateLimitDelay; i++ {
		d *= 2
	}

	return min(max(d, r.After), maxRateLimitDelay)
}

// outcome classifies the result of one attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomePermanent
	outcomeBadGateway
	outcomeRateLimited
)

// attemptState is a state of the retry machine.
type attemptState int

const (
	stateAttempt attemptState = iota
	stateBackoff
	stateDone
	stateExhausted
)

// attemptTransitions gives the state following an attempt
// for each outcome. Backoff turns into exhausted once the
// retry budget is spent.
var attemptTransitions = map[outcome]attemptState{
	outcomeSuccess:     stateDone,
	outcomePermanent:   stateExhausted,
	outcomeBadGateway:  stateBackoff,
	outcomeRateLimited: stateBackoff,
}

// Invoke performs one logical API call. The request is
// rebuilt and sent again on 502 and on rate-limit or
// abuse-detection 403 responses, at most MaxRetries times.
// Every attempt reaches the host: go-github's client-side
// rate-limit short circuit is not used. Any other failure,
// or the last failure once retries are spent, is the
// host's error as go-github's CheckResponse reports it.
//
// v receives the decoded JSON body; an io.Writer receives
// the raw body instead.
func (c *Client) Invoke(
	ctx context.Context,
	method string,
	path string,
	opts RequestOptions,
	v any,
) (*gh.Response, error) {
	var (
		resp    *gh.Response
		err     error
		result  outcome
		retries int
	)

	state := stateAttempt

	for {
		switch state {
		case stateAttempt:
			resp, err = c.attempt(ctx, method, path, opts, v)
			result = classify(err)
			state = attemptTransitions[result]

			if state == stateBackoff &&
				retries >= c.maxRetries {
				state = stateExhausted
			}

		case stateBackoff:
			retries++

			slog.Debug(
				"retrying github request",
				"method", method,
				"path", path,
				"retry", retries,
				"status", StatusCode(err),
			)

			wait := c.backoff(Retry{
				Attempt:     retries,
				RateLimited: result == outcomeRateLimited,
				After:       hostWait(err, time.Now()),
			})
			if werr := sleep(ctx, wait); werr != nil {
				return resp, fmt.Errorf(
					"waiting to retry %s %s: %w",
					method, path, werr,
				)
			}

			state = stateAttempt

		case stateDone:
			return resp, nil

		case stateExhausted:
			return resp, err
		}
	}
}

func (c *Client) attempt(
	ctx context.Context,
	method string,
	path string,
	opts RequestOptions,
	v any,
) (*gh.Response, error) {
	req, err := c.client.NewRequest(method, path, opts.Body)
	if err != nil {
		return nil, err
	}

	accept := opts.Accept
	if accept == "" {
		accept = req.Header.Get("Accept")
	}

	if accept = decorateAccept(c.appMode, accept); accept != "" {
		req.Header.Set("Accept", accept)
	}

	return c.send(ctx, req, v)
}

// send performs req on the authenticated HTTP client and
// decodes the response like go-github's Do, minus its
// client-side rate-limit bookkeeping.
func (c *Client) send(
	ctx context.Context,
	req *http.Request,
	v any,
) (*gh.Response, error) {
	httpResp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, err
	}

	defer httpResp.Body.Close()

	resp := &gh.Response{Response: httpResp}

	if err := gh.CheckResponse(httpResp); err != nil {
		var accepted *gh.AcceptedError
		if !errors.As(err, &accepted) {
			return resp, err
		}
	}

	switch v := v.(type) {
	case nil:
	case io.Writer:
		if _, err := io.Copy(v, httpResp.Body); err != nil {
			return resp, err
		}
	default:
		err := json.NewDecoder(httpResp.Body).Decode(v)
		if err != nil && !errors.Is(err, io.EOF) {
			return resp, err
		}
	}

	return resp, nil
}

// hostWait returns how long the host asked the caller to
// hold off, from a primary rate-limit reset time or a
// secondary rate-limit Retry-After.
func hostWait(err error, now time.Time) time.Duration {
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)

	switch {
	case errors.As(err, &rateErr):
		if reset := rateErr.Rate.Reset.Time; reset.After(now) {
			return reset.Sub(now)
		}
	case errors.As(err, &abuseErr):
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter
		}
	}

	return 0
}

// decorateAccept prefixes accept with the app-mode media
// type when appMode is on.
func decorateAccept(appMode bool, accept string) string {
	if !appMode {
		return accept
	}

	if accept == "" {
		return AppModeAccept
	}

	return AppModeAccept + ", " + accept
}

func classify(err error) outcome {
	if err == nil {
		return outcomeSuccess
	}

	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)

	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return outcomeRateLimited
	}

	switch StatusCode(err) {
	case http.StatusBadGateway:
		return outcomeBadGateway
	case http.StatusForbidden:
		msg := errorMessage(err)
		for _, fragment := range rateLimitMessages {
			if strings.Contains(msg, fragment) {
				return outcomeRateLimited
			}
		}
	}

	return outcomePermanent
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
