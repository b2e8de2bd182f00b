package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/toptaldev92/renovate/platform"
)

const defaultHost = "https://gitlab.com"

// GitLab merge request states.
const (
	stateOpened = "opened"
	stateClosed = "closed"
	stateAll    = "all"
)

// ErrNoToken is returned by Init when neither the
// configuration nor the environment provides a token.
var ErrNoToken = errors.New("no token found")

// Config holds the settings needed to create a GitLab
// client.
type Config struct {
	// Token is a personal or project access token.
	// Falls back to GITLAB_TOKEN.
	Token string
	// Endpoint is the base URL of the GitLab instance.
	// Falls back to GITLAB_ENDPOINT, then gitlab.com.
	Endpoint string
	// BaseBranch overrides the project default branch.
	BaseBranch string
}

// Client talks to one GitLab project at a time.
//
// Pattern: Strategy -- implements platform.Platform.
type Client struct {
	client     *gl.Client
	token      string
	baseBranch string
	repo       *platform.RepoContext
}

var _ platform.Platform = (*Client)(nil)

// New returns a Client for cfg. The project is chosen
// later by Init.
func New(cfg Config) (*Client, error) {
	const errCtx = "creating gitlab client"

	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
	}

	host := cfg.Endpoint
	if host == "" {
		host = os.Getenv("GITLAB_ENDPOINT")
	}

	if host == "" {
		host = defaultHost
	}

	client, err := gl.NewClient(
		token,
		gl.WithBaseURL(host),
		gl.WithCustomRetry(checkRetry),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Client{
		client:     client,
		token:      token,
		baseBranch: cfg.BaseBranch,
	}, nil
}

// Init opens a session on project repoName
// ("group/project") and records its base branch head.
func (c *Client) Init(
	ctx context.Context,
	repoName string,
) (*platform.RepoContext, error) {
	const errCtx = "initializing gitlab project"

	if c.token == "" {
		return nil, fmt.Errorf(
			"%w for GitLab repository %s",
			ErrNoToken, repoName,
		)
	}

	project, _, err := c.client.Projects.GetProject(
		repoName, nil, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, repoName, err,
		)
	}

	owner, _, _ := strings.Cut(repoName, "/")
	if project.Namespace != nil &&
		project.Namespace.FullPath != "" {
		owner = project.Namespace.FullPath
	}

	base := c.baseBranch
	if base == "" {
		base = project.DefaultBranch
	}

	branch, _, err := c.client.Branches.GetBranch(
		repoName, base, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: base branch %s: %w", errCtx, base, err,
		)
	}

	var sha string
	if branch.Commit != nil {
		sha = branch.Commit.ID
	}

	c.repo = &platform.RepoContext{
		Token:         c.token,
		Owner:         owner,
		Name:          repoName,
		BaseBranch:    base,
		BaseCommitSHA: sha,
	}

	slog.Debug(
		"initialized gitlab project",
		"repo", repoName,
		"base", base,
		"sha", sha,
	)

	return c.repo, nil
}

func (c *Client) session() (*platform.RepoContext, error) {
	if c.repo == nil {
		return nil, platform.ErrNotInitialized
	}

	return c.repo, nil
}

// BranchExists reports whether branch exists. A 404
// means absence, not failure.
func (c *Client) BranchExists(
	ctx context.Context,
	branch string,
) (bool, error) {
	const errCtx = "checking gitlab branch"

	rc, err := c.session()
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	_, resp, err := c.client.Branches.GetBranch(
		rc.Name, branch, gl.WithContext(ctx),
	)
	if err != nil {
		if isNotFound(resp) {
			return false, nil
		}

		return false, fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return true, nil
}

// GetFileContent returns the decoded file at path on
// branch. found is false when the file does not exist.
func (c *Client) GetFileContent(
	ctx context.Context,
	path string,
	branch string,
) (string, bool, error) {
	const errCtx = "reading gitlab file"

	rc, err := c.session()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", errCtx, err)
	}

	if branch == "" {
		branch = rc.BaseBranch
	}

	file, resp, err := c.client.RepositoryFiles.GetFile(
		rc.Name, path,
		&gl.GetFileOptions{Ref: gl.Ptr(branch)},
		gl.WithContext(ctx),
	)
	if err != nil {
		if isNotFound(resp) {
			return "", false, nil
		}

		return "", false, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	content, err := decodeContent(file.Content, file.Encoding)
	if err != nil {
		return "", false, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return content, true, nil
}

// GetBranchStatus folds the statuses of the branch head
// commit into "success", "pending" or "failure".
func (c *Client) GetBranchStatus(
	ctx context.Context,
	branch string,
) (string, error) {
	const errCtx = "getting gitlab branch status"

	rc, err := c.session()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	head, _, err := c.client.Branches.GetBranch(
		rc.Name, branch, gl.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	if head.Commit == nil {
		return statusPending, nil
	}

	statuses, _, err := c.client.Commits.GetCommitStatuses(
		rc.Name, head.Commit.ID, nil, gl.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	states := make([]string, 0, len(statuses))
	for _, s := range statuses {
		states = append(states, s.Status)
	}

	return combineStatuses(states), nil
}

const (
	statusSuccess = "success"
	statusPending = "pending"
	statusFailure = "failure"
)

// combineStatuses reduces GitLab pipeline job states:
// any failure wins, then anything unfinished, and no
// status at all is pending.
func combineStatuses(states []string) string {
	if len(states) == 0 {
		return statusPending
	}

	result := statusSuccess

	for _, s := range states {
		switch s {
		case "success", "skipped", "manual":
		case "failed", "canceled":
			return statusFailure
		default:
			result = statusPending
		}
	}

	return result
}

func isNotFound(resp *gl.Response) bool {
	return resp != nil &&
		resp.StatusCode == http.StatusNotFound
}
