package github_test

import (
	"context"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toptaldev92/renovate/platform"
	ghplat "github.com/toptaldev92/renovate/platform/github"
)

const pullsPath = "/repos/some/repo/pulls"

func TestGetPR_zero_number(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	before := len(h.recorded())

	pr, err := client.GetPR(context.Background(), 0)

	require.NoError(t, err)
	assert.Nil(t, pr)
	assert.Len(t, h.recorded(), before)
}

func TestGetPR_empty_body(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath+"/1234", 200, "null")

	pr, err := client.GetPR(context.Background(), 1234)

	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestGetPR_closed(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath+"/1234", 200, `{
	  "number": 1234,
	  "state": "closed",
	  "commits": 3,
	  "base": {"sha": "1234"},
	  "head": {"ref": "renovate/pin"}
	}`)

	pr, err := client.GetPR(context.Background(), 1234)

	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.True(t, pr.IsClosed)
	assert.Equal(t, platform.StateClosed, pr.State)
	assert.Empty(t, h.callsTo(http.MethodGet, pullsPath+"/1234/commits"))
}

func TestGetPR_single_commit_can_rebase(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath+"/1234", 200, `{
	  "number": 1234,
	  "state": "open",
	  "title": "Pin Dependencies",
	  "mergeable_state": "dirty",
	  "commits": 1,
	  "base": {"sha": "0000"},
	  "head": {"ref": "renovate/pin"}
	}`)

	pr, err := client.GetPR(context.Background(), 1234)

	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.True(t, pr.CanRebase)
	assert.True(t, pr.IsUnmergeable)
	assert.True(t, pr.IsStale)
	assert.False(t, pr.IsClosed)
	assert.Equal(t, "renovate/pin", pr.HeadRef)
	assert.Empty(t, h.callsTo(http.MethodGet, pullsPath+"/1234/commits"))
}

func TestGetPR_multiple_commits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		commits string
		want    bool
	}{
		{
			name: "one author",
			commits: `[
			  {"author": {"login": "bot"}},
			  {"author": {"login": "bot"}}
			]`,
			want: true,
		},
		{
			name: "two authors",
			commits: `[
			  {"author": {"login": "bot"}},
			  {"author": {"login": "human"}}
			]`,
			want: false,
		},
		{
			name: "unlinked authors compared by email",
			commits: `[
			  {"commit": {"author": {"email": "a@example.com"}}},
			  {"commit": {"author": {"email": "a@example.com"}}}
			]`,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, client := initClient(t, defaultRepoJSON)
			h.on(http.MethodGet, pullsPath+"/1234", 200, `{
			  "number": 1234,
			  "state": "open",
			  "commits": 2,
			  "base": {"sha": "1234"}
			}`)
			h.on(
				http.MethodGet, pullsPath+"/1234/commits",
				200, tt.commits,
			)

			pr, err := client.GetPR(context.Background(), 1234)

			require.NoError(t, err)
			require.NotNil(t, pr)
			assert.Equal(t, tt.want, pr.CanRebase)
			assert.False(t, pr.IsStale)
			assert.Len(
				t, h.callsTo(http.MethodGet, pullsPath+"/1234/commits"), 1,
			)
		})
	}
}

func TestGetBranchPR(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath, 200, `[{"number": 91}]`)
	h.on(http.MethodGet, pullsPath+"/91", 200, `{
	  "number": 91,
	  "state": "open",
	  "commits": 1
	}`)

	pr, err := client.GetBranchPR(context.Background(), "somebranch")

	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, 91, pr.Number)

	calls := h.callsTo(http.MethodGet, pullsPath)
	require.Len(t, calls, 1)
	assert.Equal(t, "open", calls[0].Query.Get("state"))
	assert.Equal(t, "master", calls[0].Query.Get("base"))
	assert.Equal(t, "theowner:somebranch", calls[0].Query.Get("head"))
}

func TestGetBranchPR_none(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath, 200, `[]`)

	pr, err := client.GetBranchPR(context.Background(), "somebranch")

	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestFindPR(t *testing.T) {
	t.Parallel()

	const list = `[
	  {"number": 1, "title": "Other", "state": "open",
	   "head": {"ref": "branch-a"}},
	  {"number": 2, "title": "Pin Dependencies", "state": "closed",
	   "head": {"ref": "branch-a"}},
	  {"number": 3, "title": "Pin Dependencies", "state": "open",
	   "head": {"ref": "branch-a"}}
	]`

	tests := []struct {
		name       string
		title      string
		state      string
		wantNumber int
		wantClosed bool
		wantState  string
	}{
		{
			name:       "any title",
			wantNumber: 1,
			wantState:  "all",
		},
		{
			name:       "title match closed",
			title:      "Pin Dependencies",
			wantNumber: 2,
			wantClosed: true,
			wantState:  "all",
		},
		{
			name:       "explicit state",
			title:      "Other",
			state:      "open",
			wantNumber: 1,
			wantState:  "open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, client := initClient(t, defaultRepoJSON)
			h.on(http.MethodGet, pullsPath, 200, list)

			pr, err := client.FindPR(
				context.Background(), "branch-a", tt.title, tt.state,
			)

			require.NoError(t, err)
			require.NotNil(t, pr)
			assert.Equal(t, tt.wantNumber, pr.Number)
			assert.Equal(t, tt.wantClosed, pr.IsClosed)

			calls := h.callsTo(http.MethodGet, pullsPath)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantState, calls[0].Query.Get("state"))
		})
	}
}

func TestFindPR_no_match(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodGet, pullsPath, 200, `[
	  {"number": 1, "title": "Other", "head": {"ref": "branch-a"}}
	]`)

	pr, err := client.FindPR(
		context.Background(), "branch-a", "Pin Dependencies", "",
	)

	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestCheckForClosedPR(t *testing.T) {
	t.Parallel()

	const list = `[
	  {"number": 1, "title": "Pin Dependencies",
	   "head": {"label": "theowner:renovate/pin"}}
	]`

	tests := []struct {
		name  string
		title string
		want  bool
	}{
		{name: "matching title", title: "Pin Dependencies", want: true},
		{name: "other title", title: "Update foo", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, client := initClient(t, defaultRepoJSON)
			h.on(http.MethodGet, pullsPath, 200, list)

			got, err := client.CheckForClosedPR(
				context.Background(), "renovate/pin", tt.title,
			)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			calls := h.callsTo(http.MethodGet, pullsPath)
			require.Len(t, calls, 1)
			assert.Equal(t, "closed", calls[0].Query.Get("state"))
		})
	}
}

func TestCreatePR(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodPost, pullsPath, 201, `{
	  "number": 123,
	  "state": "open",
	  "title": "Pin Dependencies",
	  "html_url": "https://github.com/some/repo/pull/123"
	}`)

	pr, err := client.CreatePR(
		context.Background(), "renovate/pin",
		"Pin Dependencies", "body text",
	)

	require.NoError(t, err)
	assert.Equal(t, 123, pr.Number)
	assert.Equal(t, "https://github.com/some/repo/pull/123", pr.URL)

	calls := h.callsTo(http.MethodPost, pullsPath)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{
	  "title": "Pin Dependencies",
	  "head": "renovate/pin",
	  "base": "master",
	  "body": "body text"
	}`, calls[0].Body)
}

func TestCreatePR_error(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodPost, pullsPath, 422, `{"message":"Validation Failed"}`)

	pr, err := client.CreatePR(
		context.Background(), "renovate/pin", "t", "b",
	)

	assert.Nil(t, pr)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Validation Failed")
	assert.Equal(t, http.StatusUnprocessableEntity, ghplat.StatusCode(err))

	var errResp *gh.ErrorResponse

	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, "Validation Failed", errResp.Message)
	assert.Len(t, h.callsTo(http.MethodPost, pullsPath), 1)
}

func TestUpdatePR(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodPatch, pullsPath+"/1234", 200, `{}`)

	err := client.UpdatePR(
		context.Background(), 1234, "The New Title", "Hello world",
	)

	require.NoError(t, err)

	calls := h.callsTo(http.MethodPatch, pullsPath+"/1234")
	require.Len(t, calls, 1)
	assert.JSONEq(
		t, `{"title":"The New Title","body":"Hello world"}`,
		calls[0].Body,
	)
}

func TestAddLabelsAssigneesReviewers(t *testing.T) {
	t.Parallel()

	h, client := initClient(t, defaultRepoJSON)
	h.on(http.MethodPost, "/repos/some/repo/issues/42/labels", 200, `[]`)
	h.on(http.MethodPost, "/repos/some/repo/issues/42/assignees", 201, `{}`)
	h.on(
		http.MethodPost,
		"/repos/some/repo/pulls/42/requested_reviewers",
		201, `{}`,
	)

	ctx := context.Background()

	require.NoError(t, client.AddLabels(ctx, 42, []string{"deps", "bot"}))
	require.NoError(t, client.AddAssignees(ctx, 42, []string{"alice"}))
	require.NoError(t, client.AddReviewers(ctx, 42, []string{"bob"}))

	labels := h.callsTo(http.MethodPost, "/repos/some/repo/issues/42/labels")
	require.Len(t, labels, 1)
	assert.JSONEq(t, `["deps","bot"]`, labels[0].Body)

	assignees := h.callsTo(
		http.MethodPost, "/repos/some/repo/issues/42/assignees",
	)
	require.Len(t, assignees, 1)
	assert.JSONEq(t, `{"assignees":["alice"]}`, assignees[0].Body)

	reviewers := h.callsTo(
		http.MethodPost,
		"/repos/some/repo/pulls/42/requested_reviewers",
	)
	require.Len(t, reviewers, 1)
	assert.JSONEq(t, `{"reviewers":["bob"]}`, reviewers[0].Body)
}
