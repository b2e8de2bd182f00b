package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v68/github"
)

// GetFile returns the contents entry for path on branch
// (the base branch when empty). Errors, 404 included, are
// returned as-is for the caller to classify.
func (c *Client) GetFile(
	ctx context.Context,
	path string,
	branch string,
) (*gh.RepositoryContent, error) {
	rc, err := c.session()
	if err != nil {
		return nil, err
	}

	if branch == "" {
		branch = rc.BaseBranch
	}

	query := url.Values{"ref": {branch}}

	var content *gh.RepositoryContent

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf(
			"repos/%s/contents/%s?%s",
			rc.Name,
			strings.TrimPrefix(path, "/"),
			query.Encode(),
		),
		RequestOptions{}, &content,
	); err != nil {
		return nil, err
	}

	return content, nil
}

// GetFileContent returns the decoded contents of path on
// branch. found is false when the file does not exist.
func (c *Client) GetFileContent(
	ctx context.Context,
	path string,
	branch string,
) (string, bool, error) {
	const errCtx = "reading github file"

	content, err := c.GetFile(ctx, path, branch)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	if content == nil || content.Content == nil {
		return "", false, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(
		*content.Content,
	)
	if err != nil {
		return "", false, fmt.Errorf(
			"%s: %s: decoding: %w", errCtx, path, err,
		)
	}

	return string(decoded), true, nil
}

// GetFileJSON decodes the JSON file at path into v.
func (c *Client) GetFileJSON(
	ctx context.Context,
	path string,
	branch string,
	v any,
) (bool, error) {
	const errCtx = "reading github json file"

	content, found, err := c.GetFileContent(ctx, path, branch)
	if err != nil || !found {
		return found, err
	}

	if err := json.Unmarshal([]byte(content), v); err != nil {
		return false, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return true, nil
}
