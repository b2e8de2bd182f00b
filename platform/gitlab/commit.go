package gitlab

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/toptaldev92/renovate/platform"
)

const encodingBase64 = "base64"

// CommitFilesToBranch writes files as one commit on top
// of parentBranch (the base branch when empty). An
// existing branch is force reset onto the new commit.
func (c *Client) CommitFilesToBranch(
	ctx context.Context,
	branch string,
	files []platform.FileChange,
	message string,
	parentBranch string,
) error {
	const errCtx = "committing files to gitlab branch"

	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if parentBranch == "" {
		parentBranch = rc.BaseBranch
	}

	actions := make([]*gl.CommitActionOptions, 0, len(files))

	for _, f := range files {
		action, err := c.fileAction(ctx, rc.Name, parentBranch, f.Path)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		actions = append(actions, &gl.CommitActionOptions{
			Action:   gl.Ptr(action),
			FilePath: gl.Ptr(f.Path),
			Content: gl.Ptr(base64.StdEncoding.EncodeToString(
				[]byte(f.Contents),
			)),
			Encoding: gl.Ptr(encodingBase64),
		})
	}

	exists, err := c.BranchExists(ctx, branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	opts := &gl.CreateCommitOptions{
		Branch:        gl.Ptr(branch),
		CommitMessage: gl.Ptr(message),
		StartBranch:   gl.Ptr(parentBranch),
		Actions:       actions,
	}

	if exists {
		opts.Force = gl.Ptr(true)
	}

	commit, _, err := c.client.Commits.CreateCommit(
		rc.Name, opts, gl.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	slog.Info(
		"committed files",
		"branch", branch,
		"sha", commit.ID,
		"files", len(files),
		"created", !exists,
	)

	return nil
}

// fileAction picks create or update depending on whether
// path exists on ref.
func (c *Client) fileAction(
	ctx context.Context,
	project string,
	ref string,
	path string,
) (gl.FileActionValue, error) {
	_, resp, err := c.client.RepositoryFiles.GetFile(
		project, path,
		&gl.GetFileOptions{Ref: gl.Ptr(ref)},
		gl.WithContext(ctx),
	)

	switch {
	case err == nil:
		return gl.FileUpdate, nil
	case isNotFound(resp):
		return gl.FileCreate, nil
	default:
		return "", fmt.Errorf("file %s: %w", path, err)
	}
}

func decodeContent(content, encoding string) (string, error) {
	if encoding != encodingBase64 {
		return content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}

	return string(decoded), nil
}
