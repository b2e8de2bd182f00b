package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	gh "github.com/google/go-github/v68/github"

	"github.com/toptaldev92/renovate/platform"
)

const (
	fileMode = "100644"
	blobType = "blob"
)

// commitPlan accumulates the intermediate objects of
// one CommitFilesToBranch call.
type commitPlan struct {
	baseCommitSHA string
	baseTreeSHA   string
	blobs         map[string]string
	treeSHA       string
	commitSHA     string
}

type treeRequest struct {
	BaseTree string          `json:"base_tree"`
	Tree     []*gh.TreeEntry `json:"tree"`
}

type commitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type updateRefRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

// CommitFilesToBranch writes files as one commit on top
// of parentBranch (the base branch when empty) and points
// branch at it, creating branch when missing and force
// moving it otherwise. The ref is written last: a failure
// in any earlier step leaves branch untouched.
func (c *Client) CommitFilesToBranch(
	ctx context.Context,
	branch string,
	files []platform.FileChange,
	message string,
	parentBranch string,
) error {
	const errCtx = "committing files to github branch"

	rc, err := c.session()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if parentBranch == "" {
		parentBranch = rc.BaseBranch
	}

	files = lastChangePerPath(files)
	plan := &commitPlan{}

	// 1. Parent head and tree.
	plan.baseCommitSHA, err = c.branchCommit(
		ctx, rc.Name, parentBranch,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: parent %s: %w", errCtx, parentBranch, err,
		)
	}

	plan.baseTreeSHA, err = c.commitTree(
		ctx, rc.Name, plan.baseCommitSHA,
	)
	if err != nil {
		return fmt.Errorf("%s: parent tree: %w", errCtx, err)
	}

	// 2. Blobs.
	plan.blobs, err = c.createBlobs(ctx, rc.Name, files)
	if err != nil {
		return fmt.Errorf("%s: blobs: %w", errCtx, err)
	}

	// 3. Tree.
	plan.treeSHA, err = c.createTree(
		ctx, rc.Name, plan.baseTreeSHA, files, plan.blobs,
	)
	if err != nil {
		return fmt.Errorf("%s: tree: %w", errCtx, err)
	}

	// 4. Commit.
	plan.commitSHA, err = c.createCommit(
		ctx, rc.Name, plan.baseCommitSHA,
		plan.treeSHA, message,
	)
	if err != nil {
		return fmt.Errorf("%s: commit: %w", errCtx, err)
	}

	// 5. Ref.
	exists, err := c.BranchExists(ctx, branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if exists {
		err = c.updateRef(ctx, rc.Name, branch, plan.commitSHA)
	} else {
		err = c.createRef(ctx, rc.Name, branch, plan.commitSHA)
	}

	if err != nil {
		return fmt.Errorf(
			"%s: ref %s: %w", errCtx, branch, err,
		)
	}

	slog.Info(
		"committed files",
		"branch", branch,
		"sha", plan.commitSHA,
		"files", len(files),
		"created", !exists,
	)

	return nil
}

// lastChangePerPath drops all but the last change of each
// path, keeping first-seen order.
func lastChangePerPath(
	files []platform.FileChange,
) []platform.FileChange {
	index := make(map[string]int, len(files))
	out := make([]platform.FileChange, 0, len(files))

	for _, f := range files {
		if i, seen := index[f.Path]; seen {
			out[i] = f

			continue
		}

		index[f.Path] = len(out)
		out = append(out, f)
	}

	return out
}

// createBlobs uploads one blob per file with at most
// blobParallelism requests in flight. All uploads must
// succeed.
func (c *Client) createBlobs(
	ctx context.Context,
	repoName string,
	files []platform.FileChange,
) (map[string]string, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	blobs := make(map[string]string, len(files))
	sem := make(chan struct{}, c.blobParallelism)

	for _, f := range files {
		wg.Add(1)

		sem <- struct{}{}

		go func(fc platform.FileChange) {
			defer wg.Done()
			defer func() { <-sem }()

			sha, err := c.createBlob(ctx, repoName, fc.Contents)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, fmt.Errorf(
					"%s: %w", fc.Path, err,
				))

				return
			}

			blobs[fc.Path] = sha
		}(f)
	}

	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf(
			"%d errors, first: %w", len(errs), errs[0],
		)
	}

	return blobs, nil
}

func (c *Client) createBlob(
	ctx context.Context,
	repoName string,
	contents string,
) (string, error) {
	encoding := "base64"
	encoded := base64.StdEncoding.EncodeToString(
		[]byte(contents),
	)

	var blob *gh.Blob

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf("repos/%s/git/blobs", repoName),
		RequestOptions{Body: &gh.Blob{
			Content:  &encoded,
			Encoding: &encoding,
		}},
		&blob,
	); err != nil {
		return "", err
	}

	return blob.GetSHA(), nil
}

func (c *Client) createTree(
	ctx context.Context,
	repoName string,
	baseTree string,
	files []platform.FileChange,
	blobs map[string]string,
) (string, error) {
	entries := make([]*gh.TreeEntry, 0, len(files))

	for _, f := range files {
		path, sha := f.Path, blobs[f.Path]
		mode, kind := fileMode, blobType

		entries = append(entries, &gh.TreeEntry{
			Path: &path,
			Mode: &mode,
			Type: &kind,
			SHA:  &sha,
		})
	}

	var tree *gh.Tree

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf("repos/%s/git/trees", repoName),
		RequestOptions{Body: &treeRequest{
			BaseTree: baseTree,
			Tree:     entries,
		}},
		&tree,
	); err != nil {
		return "", err
	}

	return tree.GetSHA(), nil
}

func (c *Client) createCommit(
	ctx context.Context,
	repoName string,
	parent string,
	tree string,
	message string,
) (string, error) {
	var commit *gh.Commit

	if _, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf("repos/%s/git/commits", repoName),
		RequestOptions{Body: &commitRequest{
			Message: message,
			Tree:    tree,
			Parents: []string{parent},
		}},
		&commit,
	); err != nil {
		return "", err
	}

	return commit.GetSHA(), nil
}

func (c *Client) createRef(
	ctx context.Context,
	repoName string,
	branch string,
	sha string,
) error {
	_, err := c.Invoke(
		ctx, http.MethodPost,
		fmt.Sprintf("repos/%s/git/refs", repoName),
		RequestOptions{Body: &createRefRequest{
			Ref: "refs/heads/" + branch,
			SHA: sha,
		}},
		nil,
	)

	return err
}

func (c *Client) updateRef(
	ctx context.Context,
	repoName string,
	branch string,
	sha string,
) error {
	_, err := c.Invoke(
		ctx, http.MethodPatch,
		fmt.Sprintf(
			"repos/%s/git/refs/heads/%s", repoName, branch,
		),
		RequestOptions{Body: &updateRefRequest{
			SHA:   sha,
			Force: true,
		}},
		nil,
	)

	return err
}
