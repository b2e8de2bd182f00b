package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/toptaldev92/renovate/platform"
)

// mergeState is a state of the merge negotiation.
type mergeState int

const (
	mergeNotAttempted mergeState = iota
	mergeTryingRebase
	mergeTryingSquash
	mergeTryingMerge
	mergeMerged
	mergeExhausted
)

func (s mergeState) String() string {
	switch s {
	case mergeNotAttempted:
		return "not-attempted"
	case mergeTryingRebase:
		return "trying-rebase"
	case mergeTryingSquash:
		return "trying-squash"
	case mergeTryingMerge:
		return "trying-merge"
	case mergeMerged:
		return "merged"
	case mergeExhausted:
		return "exhausted-unmerged"
	default:
		return fmt.Sprintf("merge-state(%d)", int(s))
	}
}

// mergeMethods gives the merge_method sent in each
// trying state.
var mergeMethods = map[mergeState]string{
	mergeTryingRebase: "rebase",
	mergeTryingSquash: "squash",
	mergeTryingMerge:  "merge",
}

// mergeFallbacks gives the state entered when the current
// one is skipped or its attempt is rejected.
var mergeFallbacks = map[mergeState]mergeState{
	mergeNotAttempted: mergeTryingRebase,
	mergeTryingRebase: mergeTryingSquash,
	mergeTryingSquash: mergeTryingMerge,
	mergeTryingMerge:  mergeExhausted,
}

type mergeRequest struct {
	MergeMethod string `json:"merge_method"`
}

// MergePR merges pr with the first method the repository
// accepts, trying rebase, squash then merge. Methods the
// repository reports as disabled are skipped; unreported
// ones are tried. On success the head branch is deleted.
// When every method is rejected MergePR returns false and
// a nil error.
func (c *Client) MergePR(
	ctx context.Context,
	pr *platform.PullRequest,
) (bool, error) {
	const errCtx = "merging github pull request"

	rc, err := c.session()
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	state := mergeNotAttempted

	for state != mergeMerged && state != mergeExhausted {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("%s: %w", errCtx, err)
		}

		state = c.nextMergeState(ctx, rc, pr, state)
	}

	if state == mergeExhausted {
		slog.Warn(
			"could not merge pull request",
			"number", pr.Number,
		)

		return false, nil
	}

	slog.Info("merged pull request", "number", pr.Number)

	if err := c.DeleteBranch(ctx, pr.HeadRef); err != nil {
		slog.Warn(
			"cannot delete merged branch",
			"branch", pr.HeadRef,
			"error", err,
		)
	}

	return true, nil
}

func (c *Client) nextMergeState(
	ctx context.Context,
	rc *platform.RepoContext,
	pr *platform.PullRequest,
	state mergeState,
) mergeState {
	method, trying := mergeMethods[state]
	if !trying {
		return mergeFallbacks[state]
	}

	if !methodAllowed(rc.Capabilities, state) {
		slog.Debug(
			"skipping disabled merge method",
			"number", pr.Number,
			"method", method,
		)

		return mergeFallbacks[state]
	}

	if _, err := c.Invoke(
		ctx, http.MethodPut,
		fmt.Sprintf(
			"repos/%s/pulls/%d/merge", rc.Name, pr.Number,
		),
		RequestOptions{Body: &mergeRequest{
			MergeMethod: method,
		}},
		nil,
	); err != nil {
		slog.Info(
			"merge method rejected",
			"number", pr.Number,
			"method", method,
			"error", err,
		)

		return mergeFallbacks[state]
	}

	return mergeMerged
}

func methodAllowed(
	caps platform.MergeCapabilities,
	state mergeState,
) bool {
	var flag *bool

	switch state {
	case mergeTryingRebase:
		flag = caps.Rebase
	case mergeTryingSquash:
		flag = caps.Squash
	case mergeTryingMerge:
		flag = caps.Merge
	}

	return flag == nil || *flag
}
