package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/toptaldev92/renovate/platform"
)

const defaultBlobParallelism = 4

// Config holds the settings needed to create a GitHub
// client.
type Config struct {
	// Token is a personal access token. Falls back to
	// the GITHUB_TOKEN environment variable.
	Token string
	// Endpoint is the API base URL, e.g.
	// "https://git.corp.example.com/api/v3/". Falls back
	// to GITHUB_ENDPOINT, then to api.github.com.
	Endpoint string
	// BaseBranch overrides the repository default branch.
	BaseBranch string
	// AppMode decorates every request with the GitHub
	// App preview media type.
	AppMode bool
	// HTTPClient replaces the token transport, typically
	// with a GitHub App installation transport.
	HTTPClient *http.Client
}

// Option tunes a Client.
type Option func(*Client)

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithMaxRetries sets how many times a retryable failure
// is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBlobParallelism bounds concurrent blob uploads in
// CommitFilesToBranch.
func WithBlobParallelism(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.blobParallelism = n
		}
	}
}

// Client talks to one GitHub repository at a time.
//
// Pattern: Strategy -- implements platform.Platform.
type Client struct {
	client          *gh.Client
	httpClient      *http.Client
	token           string
	authenticated   bool
	appMode         bool
	baseBranch      string
	maxRetries      int
	backoff         Backoff
	blobParallelism int
	repo            *platform.RepoContext
}

var _ platform.Platform = (*Client)(nil)

// New returns a Client for cfg. The repository is chosen
// later by Init.
func New(cfg Config, opts ...Option) (*Client, error) {
	const errCtx = "creating github client"

	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("GITHUB_ENDPOINT")
	}

	client := gh.NewClient(cfg.HTTPClient)
	if cfg.HTTPClient == nil && token != "" {
		client = client.WithAuthToken(token)
	}

	if endpoint != "" {
		baseURL, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: endpoint: %w", errCtx, err,
			)
		}

		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}

		client.BaseURL = baseURL
	}

	c := &Client{
		client:          client,
		httpClient:      client.Client(),
		token:           token,
		authenticated:   token != "" || cfg.HTTPClient != nil,
		appMode:         cfg.AppMode,
		baseBranch:      cfg.BaseBranch,
		maxRetries:      defaultMaxRetries,
		backoff:         DefaultBackoff,
		blobParallelism: defaultBlobParallelism,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Init opens a session on repoName ("owner/name") and
// records its base branch head, base tree and merge
// capabilities.
func (c *Client) Init(
	ctx context.Context,
	repoName string,
) (*platform.RepoContext, error) {
	const errCtx = "initializing github repository"

	if !c.authenticated {
		return nil, fmt.Errorf(
			"%w for GitHub repository %s",
			ErrNoToken, repoName,
		)
	}

	var repo *gh.Repository

	if _, err := c.Invoke(
		ctx, http.MethodGet, "repos/"+repoName,
		RequestOptions{}, &repo,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, repoName, err,
		)
	}

	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner, _, _ = strings.Cut(repoName, "/")
	}

	base := c.baseBranch
	if base == "" {
		base = repo.GetDefaultBranch()
	}

	commitSHA, err := c.branchCommit(ctx, repoName, base)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: base branch %s: %w", errCtx, base, err,
		)
	}

	treeSHA, err := c.commitTree(ctx, repoName, commitSHA)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: base tree: %w", errCtx, err,
		)
	}

	c.repo = &platform.RepoContext{
		Token:         c.token,
		Owner:         owner,
		Name:          repoName,
		BaseBranch:    base,
		BaseCommitSHA: commitSHA,
		BaseTreeSHA:   treeSHA,
		Capabilities: platform.MergeCapabilities{
			Rebase: repo.AllowRebaseMerge,
			Squash: repo.AllowSquashMerge,
			Merge:  repo.AllowMergeCommit,
		},
	}

	slog.Debug(
		"initialized github repository",
		"repo", repoName,
		"base", base,
		"sha", commitSHA,
	)

	return c.repo, nil
}

func (c *Client) session() (*platform.RepoContext, error) {
	if c.repo == nil {
		return nil, platform.ErrNotInitialized
	}

	return c.repo, nil
}

// branchCommit returns the head commit SHA of branch.
func (c *Client) branchCommit(
	ctx context.Context,
	repoName string,
	branch string,
) (string, error) {
	refs, err := c.headRefs(ctx, repoName, branch)
	if err != nil {
		return "", err
	}

	if ref := exactRef(refs, branch); ref != nil {
		return ref.GetObject().GetSHA(), nil
	}

	return "", fmt.Errorf("branch %s not found", branch)
}

// commitTree returns the tree SHA of a commit.
func (c *Client) commitTree(
	ctx context.Context,
	repoName string,
	sha string,
) (string, error) {
	var commit *gh.Commit

	if _, err := c.Invoke(
		ctx, http.MethodGet,
		fmt.Sprintf("repos/%s/git/commits/%s", repoName, sha),
		RequestOptions{}, &commit,
	); err != nil {
		return "", err
	}

	return commit.GetTree().GetSHA(), nil
}
