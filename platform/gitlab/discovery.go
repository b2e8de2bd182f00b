package gitlab

import (
	"context"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"
)

const discoveryPageSize = 100

// GetRepos returns the full paths of every project the
// token is a member of. It needs no session.
func (c *Client) GetRepos(ctx context.Context) ([]string, error) {
	const errCtx = "listing gitlab projects"

	if c.token == "" {
		return nil, fmt.Errorf("%w for getRepos", ErrNoToken)
	}

	opt := &gl.ListProjectsOptions{
		ListOptions: gl.ListOptions{
			PerPage: discoveryPageSize,
			Page:    1,
		},
		Membership: gl.Ptr(true),
	}

	var names []string

	for {
		projects, resp, err := c.client.Projects.ListProjects(
			opt, gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		for _, p := range projects {
			names = append(names, p.PathWithNamespace)
		}

		if resp.NextPage == 0 {
			return names, nil
		}

		opt.Page = resp.NextPage
	}
}

// FindFilePaths returns the paths of blobs named exactly
// fileName on the base branch.
func (c *Client) FindFilePaths(
	ctx context.Context,
	fileName string,
) ([]string, error) {
	const errCtx = "searching gitlab files"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	opt := &gl.ListTreeOptions{
		ListOptions: gl.ListOptions{
			PerPage: discoveryPageSize,
			Page:    1,
		},
		Ref:       gl.Ptr(rc.BaseBranch),
		Recursive: gl.Ptr(true),
	}

	var paths []string

	for {
		nodes, resp, err := c.client.Repositories.ListTree(
			rc.Name, opt, gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, fileName, err,
			)
		}

		for _, n := range nodes {
			if n.Type == "blob" && n.Name == fileName {
				paths = append(paths, n.Path)
			}
		}

		if resp.NextPage == 0 {
			return paths, nil
		}

		opt.Page = resp.NextPage
	}
}
