package github

import (
	"errors"
	"net/http"

	gh "github.com/google/go-github/v68/github"
)

// ErrNoToken is returned by Init when neither the
// configuration nor the environment provides a token.
var ErrNoToken = errors.New("no token found")

// StatusCode returns the HTTP status carried by a GitHub
// API error, or 0 when err did not come from a response.
func StatusCode(err error) int {
	var (
		errResp  *gh.ErrorResponse
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)

	switch {
	case errors.As(err, &errResp):
		if errResp.Response != nil {
			return errResp.Response.StatusCode
		}
	case errors.As(err, &rateErr):
		if rateErr.Response != nil {
			return rateErr.Response.StatusCode
		}
	case errors.As(err, &abuseErr):
		if abuseErr.Response != nil {
			return abuseErr.Response.StatusCode
		}
	}

	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// errorMessage returns the message the API attached to
// err, falling back to the error text.
func errorMessage(err error) string {
	var (
		errResp  *gh.ErrorResponse
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)

	switch {
	case errors.As(err, &errResp):
		return errResp.Message
	case errors.As(err, &rateErr):
		return rateErr.Message
	case errors.As(err, &abuseErr):
		return abuseErr.Message
	}

	return err.Error()
}
