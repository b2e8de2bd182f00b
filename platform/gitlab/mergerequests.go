package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/toptaldev92/renovate/platform"
)

// byIID calls a merge request scoped client-go method
// with iid converted to the integer type it expects.
func byIID[I ~int | ~int64, O, R any](
	fn func(any, I, O, ...gl.RequestOptionFunc) (R, *gl.Response, error),
	project string,
	iid int,
	opt O,
	options ...gl.RequestOptionFunc,
) (R, *gl.Response, error) {
	return fn(project, I(iid), opt, options...)
}

// GetPR returns merge request iid, or nil for iid 0.
func (c *Client) GetPR(
	ctx context.Context,
	iid int,
) (*platform.PullRequest, error) {
	const errCtx = "getting gitlab merge request"

	if iid == 0 {
		return nil, nil
	}

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	mr, resp, err := byIID(
		c.client.MergeRequests.GetMergeRequest,
		rc.Name, iid,
		(*gl.GetMergeRequestsOptions)(nil),
		gl.WithContext(ctx),
	)
	if err != nil {
		if isNotFound(resp) {
			return nil, nil
		}

		return nil, fmt.Errorf(
			"%s: !%d: %w", errCtx, iid, err,
		)
	}

	state := normalizeState(mr.State)

	return &platform.PullRequest{
		Number:        int(mr.IID),
		Title:         mr.Title,
		Body:          mr.Description,
		State:         state,
		HeadRef:       mr.SourceBranch,
		IsClosed:      state == platform.StateClosed,
		IsUnmergeable: mr.HasConflicts,
		URL:           mr.WebURL,
	}, nil
}

// GetBranchPR returns the open merge request from branch
// into the base branch, or nil.
func (c *Client) GetBranchPR(
	ctx context.Context,
	branch string,
) (*platform.PullRequest, error) {
	const errCtx = "getting gitlab branch merge request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	mrs, _, err := c.client.MergeRequests.ListProjectMergeRequests(
		rc.Name,
		&gl.ListProjectMergeRequestsOptions{
			State:        gl.Ptr(stateOpened),
			SourceBranch: gl.Ptr(branch),
			TargetBranch: gl.Ptr(rc.BaseBranch),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	if len(mrs) == 0 {
		return nil, nil
	}

	return c.GetPR(ctx, int(mrs[0].IID))
}

// FindPR returns the first merge request from branch
// whose title matches (any title when empty). state is
// "open", "closed" or "all" (the default).
func (c *Client) FindPR(
	ctx context.Context,
	branch string,
	title string,
	state string,
) (*platform.PullRequest, error) {
	const errCtx = "finding gitlab merge request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	mrs, _, err := c.client.MergeRequests.ListProjectMergeRequests(
		rc.Name,
		&gl.ListProjectMergeRequestsOptions{
			State:        gl.Ptr(gitlabState(state)),
			SourceBranch: gl.Ptr(branch),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	for _, mr := range mrs {
		if title != "" && mr.Title != title {
			continue
		}

		normalized := normalizeState(mr.State)

		return &platform.PullRequest{
			Number:   int(mr.IID),
			Title:    mr.Title,
			Body:     mr.Description,
			State:    normalized,
			HeadRef:  mr.SourceBranch,
			IsClosed: normalized == platform.StateClosed,
			URL:      mr.WebURL,
		}, nil
	}

	return nil, nil
}

// CheckForClosedPR reports whether a closed merge request
// with exactly title exists for branch.
func (c *Client) CheckForClosedPR(
	ctx context.Context,
	branch string,
	title string,
) (bool, error) {
	pr, err := c.FindPR(ctx, branch, title, platform.StateClosed)
	if err != nil {
		return false, err
	}

	return pr != nil, nil
}

// CreatePR opens a merge request from branch into the
// base branch. The source branch is removed on merge.
func (c *Client) CreatePR(
	ctx context.Context,
	branch string,
	title string,
	body string,
) (*platform.PullRequest, error) {
	const errCtx = "creating gitlab merge request"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	created, _, err := c.client.MergeRequests.CreateMergeRequest(
		rc.Name,
		&gl.CreateMergeRequestOptions{
			Title:              gl.Ptr(title),
			Description:        gl.Ptr(body),
			SourceBranch:       gl.Ptr(branch),
			TargetBranch:       gl.Ptr(rc.BaseBranch),
			RemoveSourceBranch: gl.Ptr(true),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	slog.Info(
		"created merge request",
		"number", created.IID,
		"url", created.WebURL,
	)

	return &platform.PullRequest{
		Number:  int(created.IID),
		Title:   created.Title,
		Body:    created.Description,
		State:   platform.StateOpen,
		HeadRef: branch,
		URL:     created.WebURL,
	}, nil
}

// UpdatePR replaces the title and description of a merge
// request.
func (c *Client) UpdatePR(
	ctx context.Context,
	iid int,
	title string,
	body string,
) error {
	const errCtx = "updating gitlab merge request"

	return c.update(ctx, errCtx, iid, &gl.UpdateMergeRequestOptions{
		Title:       gl.Ptr(title),
		Description: gl.Ptr(body),
	})
}

// AddLabels adds labels to merge request iid.
func (c *Client) AddLabels(
	ctx context.Context,
	iid int,
	labels []string,
) error {
	const errCtx = "adding gitlab labels"

	return c.update(ctx, errCtx, iid, &gl.UpdateMergeRequestOptions{
		AddLabels: gl.Ptr(gl.LabelOptions(labels)),
	})
}

// AddAssignees assigns usernames to merge request iid
// with an /assign quick action.
func (c *Client) AddAssignees(
	ctx context.Context,
	iid int,
	assignees []string,
) error {
	const errCtx = "adding gitlab assignees"

	return c.quickAction(ctx, errCtx, iid, "/assign", assignees)
}

// AddReviewers requests reviews from usernames with an
// /assign_reviewer quick action.
func (c *Client) AddReviewers(
	ctx context.Context,
	iid int,
	reviewers []string,
) error {
	const errCtx = "adding gitlab reviewers"

	return c.quickAction(
		ctx, errCtx, iid, "/assign_reviewer", reviewers,
	)
}

// MergePR accepts the merge request and removes its
// source branch. A rejected merge returns false and a
// nil error.
func (c *Client) MergePR(
	ctx context.Context,
	pr *platform.PullRequest,
) (bool, error) {
	const errCtx = "merging gitlab merge request"

	rc, err := c.session()
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	_, _, err = byIID(
		c.client.MergeRequests.AcceptMergeRequest,
		rc.Name, pr.Number,
		&gl.AcceptMergeRequestOptions{
			ShouldRemoveSourceBranch: gl.Ptr(true),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		slog.Warn(
			"could not merge merge request",
			"number", pr.Number,
			"error", err,
		)

		return false, nil
	}

	slog.Info("merged merge request", "number", pr.Number)

	return true, nil
}

func (c *Client) update(
	ctx context.Context,
	errCtx string,
	iid int,
	opt *gl.UpdateMergeRequestOptions,
) error {
	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, _, err := byIID(
		c.client.MergeRequests.UpdateMergeRequest,
		rc.Name, iid, opt, gl.WithContext(ctx),
	); err != nil {
		return fmt.Errorf("%s: !%d: %w", errCtx, iid, err)
	}

	return nil
}

func (c *Client) quickAction(
	ctx context.Context,
	errCtx string,
	iid int,
	command string,
	users []string,
) error {
	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	mentions := make([]string, 0, len(users))
	for _, u := range users {
		mentions = append(mentions, "@"+strings.TrimPrefix(u, "@"))
	}

	body := command + " " + strings.Join(mentions, " ")

	if _, _, err := byIID(
		c.client.Notes.CreateMergeRequestNote,
		rc.Name, iid,
		&gl.CreateMergeRequestNoteOptions{Body: gl.Ptr(body)},
		gl.WithContext(ctx),
	); err != nil {
		return fmt.Errorf("%s: !%d: %w", errCtx, iid, err)
	}

	return nil
}

func normalizeState(state string) string {
	if state == stateOpened {
		return platform.StateOpen
	}

	return platform.StateClosed
}

func gitlabState(state string) string {
	switch state {
	case platform.StateOpen:
		return stateOpened
	case platform.StateClosed:
		return stateClosed
	default:
		return stateAll
	}
}
