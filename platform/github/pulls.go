package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v68/github"

	"github.com/toptaldev92/renovate/platform"
)

type assigneesRequest struct {
	Assignees []string `json:"assignees"`
}

type updatePRRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// GetPR returns pull request number, or nil when number
// is 0 or the API answers with an empty body. Open pull
// requests with several commits cost one more call to
// decide CanRebase.
func (c *Client) GetPR(
	ctx context.Context,
	number int,
) (*platform.PullRequest, error) {
	const errCtx = "getting github pull request"

	if number == 0 {
		return nil, nil
	}

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var pr *gh.PullRequest

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf("repos/%s/pulls/%d", rc.Name, number),
		RequestOptions{}, &pr,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: #%d: %w", errCtx, number, err,
		)
	}

	if pr == nil || pr.Number == nil {
		return nil, nil
	}

	out := toPullRequest(pr)
	if out.IsClosed {
		return out, nil
	}

	out.IsUnmergeable = out.MergeableState == "dirty"
	out.IsStale = out.BaseSHA != rc.BaseCommitSHA

	if out.Commits == 1 {
		out.CanRebase = true

		return out, nil
	}

	var commits []*gh.RepositoryCommit

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf(
			"repos/%s/pulls/%d/commits", rc.Name, number,
		),
		RequestOptions{}, &commits,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: #%d: commits: %w", errCtx, number, err,
		)
	}

	authors := make(map[string]struct{}, len(commits))
	for _, commit := range commits {
		authors[commitAuthor(commit)] = struct{}{}
	}

	out.CanRebase = len(authors) == 1

	return out, nil
}

// GetBranchPR returns the open pull request whose head is
// branch and whose base is the base branch, or nil.
func (c *Client) GetBranchPR(
	ctx context.Context,
	branch string,
) (*platform.PullRequest, error) {
	const errCtx = "getting github branch pull request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	prs, err := c.listPRs(ctx, rc, url.Values{
		"state": {platform.StateOpen},
		"base":  {rc.BaseBranch},
		"head":  {rc.Owner + ":" + branch},
	})
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	if len(prs) == 0 {
		return nil, nil
	}

	return c.GetPR(ctx, prs[0].GetNumber())
}

// FindPR returns the first pull request on branch whose
// title matches (any title when empty). state defaults to
// "all".
func (c *Client) FindPR(
	ctx context.Context,
	branch string,
	title string,
	state string,
) (*platform.PullRequest, error) {
	const errCtx = "finding github pull request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if state == "" {
		state = "all"
	}

	prs, err := c.listPRs(ctx, rc, url.Values{
		"state": {state},
		"head":  {rc.Owner + ":" + branch},
	})
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	for _, pr := range prs {
		if pr.GetHead().GetRef() != branch {
			continue
		}

		if title != "" && pr.GetTitle() != title {
			continue
		}

		return toPullRequest(pr), nil
	}

	return nil, nil
}

// CheckForClosedPR reports whether a closed pull request
// with exactly title exists for branch.
func (c *Client) CheckForClosedPR(
	ctx context.Context,
	branch string,
	title string,
) (bool, error) {
	const errCtx = "checking closed github pull requests"

	rc, err := c.session()
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	label := rc.Owner + ":" + branch

	prs, err := c.listPRs(ctx, rc, url.Values{
		"state": {platform.StateClosed},
		"head":  {label},
	})
	if err != nil {
		return false, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	for _, pr := range prs {
		if pr.GetTitle() == title &&
			pr.GetHead().GetLabel() == label {
			return true, nil
		}
	}

	return false, nil
}

// CreatePR opens a pull request from branch into the base
// branch.
func (c *Client) CreatePR(
	ctx context.Context,
	branch string,
	title string,
	body string,
) (*platform.PullRequest, error) {
	const errCtx = "creating github pull request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var created *gh.PullRequest

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf("repos/%s/pulls", rc.Name),
		RequestOptions{Body: &gh.NewPullRequest{
			Title: &title,
			Head:  &branch,
			Base:  &rc.BaseBranch,
			Body:  &body,
		}},
		&created,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	slog.Info(
		"created pull request",
		"number", created.GetNumber(),
		"url", created.GetHTMLURL(),
	)

	return toPullRequest(created), nil
}

// UpdatePR replaces the title and body of a pull request.
func (c *Client) UpdatePR(
	ctx context.Context,
	number int,
	title string,
	body string,
) error {
	const errCtx = "updating github pull request"

	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := c.Invoke(
		ctx, http.MethodPatch,
		fmt.Sprintf("repos/%s/pulls/%d", rc.Name, number),
		RequestOptions{Body: &updatePRRequest{
			Title: title,
			Body:  body,
		}},
		nil,
	); err != nil {
		return fmt.Errorf(
			"%s: #%d: %w", errCtx, number, err,
		)
	}

	slog.Info("updated pull request", "number", number)

	return nil
}

// AddLabels adds labels to issue or pull request number.
func (c *Client) AddLabels(
	ctx context.Context,
	number int,
	labels []string,
) error {
	const errCtx = "adding github labels"

	return c.postIssueList(
		ctx, errCtx, number, "labels", labels,
	)
}

// AddAssignees assigns logins to issue or pull request
// number.
func (c *Client) AddAssignees(
	ctx context.Context,
	number int,
	assignees []string,
) error {
	const errCtx = "adding github assignees"

	return c.postIssueList(
		ctx, errCtx, number, "assignees",
		assigneesRequest{Assignees: assignees},
	)
}

// AddReviewers requests reviews from logins on pull
// request number.
func (c *Client) AddReviewers(
	ctx context.Context,
	number int,
	reviewers []string,
) error {
	const errCtx = "adding github reviewers"

	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf(
			"repos/%s/pulls/%d/requested_reviewers",
			rc.Name, number,
		),
		RequestOptions{Body: &gh.ReviewersRequest{
			Reviewers: reviewers,
		}},
		nil,
	); err != nil {
		return fmt.Errorf(
			"%s: #%d: %w", errCtx, number, err,
		)
	}

	return nil
}

func (c *Client) postIssueList(
	ctx context.Context,
	errCtx string,
	number int,
	resource string,
	body any,
) error {
	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf(
			"repos/%s/issues/%d/%s",
			rc.Name, number, resource,
		),
		RequestOptions{Body: body},
		nil,
	); err != nil {
		return fmt.Errorf(
			"%s: #%d: %w", errCtx, number, err,
		)
	}

	return nil
}

func (c *Client) listPRs(
	ctx context.Context,
	rc *platform.RepoContext,
	query url.Values,
) ([]*gh.PullRequest, error) {
	var prs []*gh.PullRequest

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf(
			"repos/%s/pulls?%s", rc.Name, query.Encode(),
		),
		RequestOptions{}, &prs,
	); err != nil {
		return nil, err
	}

	return prs, nil
}

func toPullRequest(pr *gh.PullRequest) *platform.PullRequest {
	state := platform.StateOpen
	if pr.GetState() == platform.StateClosed {
		state = platform.StateClosed
	}

	return &platform.PullRequest{
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		State:          state,
		BaseSHA:        pr.GetBase().GetSHA(),
		HeadRef:        pr.GetHead().GetRef(),
		Commits:        pr.GetCommits(),
		MergeableState: pr.GetMergeableState(),
		IsClosed:       state == platform.StateClosed,
		URL:            pr.GetHTMLURL(),
	}
}

// commitAuthor identifies who wrote a commit: the GitHub
// login when the author is linked to an account, the git
// author email otherwise.
func commitAuthor(commit *gh.RepositoryCommit) string {
	if login := commit.GetAuthor().GetLogin(); login != "" {
		return login
	}

	return commit.GetCommit().GetAuthor().GetEmail()
}
