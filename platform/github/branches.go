package github

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v68/github"
)

// BranchExists reports whether refs/heads/<branch> exists.
// A 404 means absence, not failure.
func (c *Client) BranchExists(
	ctx context.Context,
	branch string,
) (bool, error) {
	const errCtx = "checking github branch"

	rc, err := c.session()
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	refs, err := c.headRefs(ctx, rc.Name, branch)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return exactRef(refs, branch) != nil, nil
}

// DeleteBranch removes refs/heads/<branch>.
func (c *Client) DeleteBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "deleting github branch"

	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := c.Invoke(
		ctx, http.MethodDelete,
		fmt.Sprintf(
			"repos/%s/git/refs/heads/%s", rc.Name, branch,
		),
		RequestOptions{}, nil,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	slog.Info("deleted branch", "branch", branch)

	return nil
}

// GetBranchStatus returns the combined commit status of
// the branch head: "success", "pending" or "failure".
func (c *Client) GetBranchStatus(
	ctx context.Context,
	branch string,
) (string, error) {
	const errCtx = "getting github branch status"

	rc, err := c.session()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	var status *gh.CombinedStatus

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf(
			"repos/%s/commits/%s/status", rc.Name, branch,
		),
		RequestOptions{}, &status,
	); err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return status.GetState(), nil
}

// headRefs fetches git/refs/heads/<branch>. GitHub answers
// with a single object on an exact match and with an array
// when branch only prefixes existing refs.
func (c *Client) headRefs(
	ctx context.Context,
	repoName string,
	branch string,
) ([]*gh.Reference, error) {
	var buf bytes.Buffer

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf(
			"repos/%s/git/refs/heads/%s", repoName, branch,
		),
		RequestOptions{}, &buf,
	); err != nil {
		return nil, err
	}

	return decodeRefs(buf.Bytes())
}

func decodeRefs(raw []byte) ([]*gh.Reference, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '[' {
		var refs []*gh.Reference
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("decoding refs: %w", err)
		}

		return refs, nil
	}

	var ref gh.Reference
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("decoding ref: %w", err)
	}

	return []*gh.Reference{&ref}, nil
}

func exactRef(
	refs []*gh.Reference,
	branch string,
) *gh.Reference {
	want := "refs/heads/" + branch

	for _, ref := range refs {
		if ref.GetRef() == want {
			return ref
		}
	}

	return nil
}
