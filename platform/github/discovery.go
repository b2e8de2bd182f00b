package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
)

const discoveryPageSize = 100

// GetRepos returns the full names of every repository the
// token can access. It needs no session.
func (c *Client) GetRepos(ctx context.Context) ([]string, error) {
	const errCtx = "listing github repositories"

	if !c.authenticated {
		return nil, fmt.Errorf("%w for getRepos", ErrNoToken)
	}

	var names []string

	err := paginate(
		ctx, c, "user/repos",
		func(repos []*gh.Repository) {
			for _, r := range repos {
				names = append(names, r.GetFullName())
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return names, nil
}

// FindFilePaths returns the repository paths of files
// named exactly fileName, found through code search.
// Leading slashes are removed.
func (c *Client) FindFilePaths(
	ctx context.Context,
	fileName string,
) ([]string, error) {
	const errCtx = "searching github files"

	rc, err := c.session()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	q := url.Values{
		"q": {fmt.Sprintf(
			"repo:%s filename:%s", rc.Name, fileName,
		)},
	}

	var result gh.CodeSearchResult

	if _, err := c.Invoke(
		ctx, http.MethodGet, "search/code?"+q.Encode(),
		RequestOptions{}, &result,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, fileName, err,
		)
	}

	var paths []string

	for _, item := range result.CodeResults {
		if item.GetName() != fileName {
			continue
		}

		paths = append(
			paths, strings.TrimLeft(item.GetPath(), "/"),
		)
	}

	return paths, nil
}

// GetInstallations returns the ids of every installation
// of the app. The client must authenticate as the app
// itself, see NewAppsHTTPClient.
func (c *Client) GetInstallations(
	ctx context.Context,
) ([]int64, error) {
	const errCtx = "listing github app installations"

	var ids []int64

	err := paginate(
		ctx, c, "app/installations",
		func(installations []*gh.Installation) {
			for _, inst := range installations {
				ids = append(ids, inst.GetID())
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return ids, nil
}

// GetInstallationRepositories returns the full names of
// the repositories granted to the installation the client
// authenticates as, see NewAppHTTPClient.
func (c *Client) GetInstallationRepositories(
	ctx context.Context,
) ([]string, error) {
	const errCtx = "listing github installation repositories"

	var names []string

	for page := 1; ; page++ {
		var list gh.ListRepositories

		if _, err := c.Invoke(
			ctx, http.MethodGet,
			pagePath("installation/repositories", page),
			RequestOptions{}, &list,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		for _, r := range list.Repositories {
			names = append(names, r.GetFullName())
		}

		if len(list.Repositories) < discoveryPageSize {
			return names, nil
		}
	}
}

// paginate walks a list endpoint page by page until a
// short page.
func paginate[T any](
	ctx context.Context,
	c *Client,
	path string,
	collect func(items []T),
) error {
	for page := 1; ; page++ {
		var items []T

		if _, err := c.Invoke(
			ctx, http.MethodGet, pagePath(path, page),
			RequestOptions{}, &items,
		); err != nil {
			return err
		}

		collect(items)

		if len(items) < discoveryPageSize {
			return nil
		}
	}
}

func pagePath(path string, page int) string {
	return fmt.Sprintf(
		"%s?per_page=%d&page=%d", path, discoveryPageSize, page,
	)
}
