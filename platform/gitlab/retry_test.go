package gitlab_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	glplat "github.com/toptaldev92/renovate/platform/gitlab"
)

func TestCheckRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		header http.Header
		want   bool
	}{
		{name: "ok", status: 200, want: false},
		{name: "not found", status: 404, want: false},
		{name: "forbidden", status: 403, want: false},
		{
			name:   "rate limited",
			status: 403,
			header: http.Header{"Ratelimit-Remaining": {"0"}},
			want:   true,
		},
		{
			name:   "retry after",
			status: 403,
			header: http.Header{"Retry-After": {"3"}},
			want:   true,
		},
		{
			name:   "quota left",
			status: 403,
			header: http.Header{"Ratelimit-Remaining": {"12"}},
			want:   false,
		},
		{name: "too many requests", status: 429, want: true},
		{name: "bad gateway", status: 502, want: true},
		{name: "server error", status: 500, want: true},
		{name: "not implemented", status: 501, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := tt.header
			if header == nil {
				header = http.Header{}
			}

			retry, err := glplat.CheckRetryForTest(
				context.Background(),
				&http.Response{StatusCode: tt.status, Header: header},
				nil,
			)

			require.NoError(t, err)
			assert.Equal(t, tt.want, retry)
		})
	}
}

func TestCheckRetry_cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := glplat.CheckRetryForTest(
		ctx, &http.Response{StatusCode: 502}, nil,
	)

	assert.False(t, retry)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckRetry_transport_error(t *testing.T) {
	t.Parallel()

	retry, err := glplat.CheckRetryForTest(
		context.Background(), nil, errors.New("connection reset"),
	)

	assert.True(t, retry)
	require.NoError(t, err)
}

func TestBranchExists_rate_limited_forbidden_is_retried(t *testing.T) {
	t.Parallel()

	h, client := initGitLab(t)
	h.onWithHeader(
		http.MethodGet, branchesPath+"feature", 403,
		`{"message":"403 Forbidden"}`,
		http.Header{"RateLimit-Remaining": {"0"}},
	)
	h.on(
		http.MethodGet, branchesPath+"feature", 200,
		`{"name":"feature","commit":{"id":"def456"}}`,
	)

	exists, err := client.BranchExists(context.Background(), "feature")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, h.callsTo(http.MethodGet, branchesPath+"feature"), 2)
}

func TestBranchExists_plain_forbidden_is_not_retried(t *testing.T) {
	t.Parallel()

	h, client := initGitLab(t)
	h.on(
		http.MethodGet, branchesPath+"feature", 403,
		`{"message":"403 Forbidden"}`,
	)

	_, err := client.BranchExists(context.Background(), "feature")

	require.Error(t, err)
	assert.Len(t, h.callsTo(http.MethodGet, branchesPath+"feature"), 1)
}
