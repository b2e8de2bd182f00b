package platform

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by session operations
// called before Init.
var ErrNotInitialized = errors.New(
	"platform session not initialized",
)

// Pattern: Strategy -- swap hosting platform without
// changing the update workflow.

// Platform is a repository session on a git hosting
// platform.
type Platform interface {
	// Init resolves repository metadata and the base
	// branch head. It must be called first.
	Init(
		ctx context.Context,
		repoName string,
	) (*RepoContext, error)

	// BranchExists reports whether a branch head named
	// branch exists. Absence is not an error.
	BranchExists(
		ctx context.Context,
		branch string,
	) (bool, error)

	// GetBranchPR returns the open pull request whose
	// head is branch, or nil.
	GetBranchPR(
		ctx context.Context,
		branch string,
	) (*PullRequest, error)

	// FindPR returns the first pull request for branch
	// matching title (any title when empty) in state,
	// or nil.
	FindPR(
		ctx context.Context,
		branch string,
		title string,
		state string,
	) (*PullRequest, error)

	// CheckForClosedPR reports whether a closed pull
	// request with exactly title exists for branch.
	CheckForClosedPR(
		ctx context.Context,
		branch string,
		title string,
	) (bool, error)

	// GetFileContent returns the decoded file at path on
	// branch (base branch when empty). found is false
	// when the file does not exist.
	GetFileContent(
		ctx context.Context,
		path string,
		branch string,
	) (content string, found bool, err error)

	// FindFilePaths returns the paths of files named
	// exactly fileName in the repository.
	FindFilePaths(
		ctx context.Context,
		fileName string,
	) ([]string, error)

	// CommitFilesToBranch writes all files as a single
	// commit on branch, created from parentBranch (base
	// branch when empty) if it does not exist yet.
	CommitFilesToBranch(
		ctx context.Context,
		branch string,
		files []FileChange,
		message string,
		parentBranch string,
	) error

	// CreatePR opens a pull request from branch into the
	// base branch.
	CreatePR(
		ctx context.Context,
		branch string,
		title string,
		body string,
	) (*PullRequest, error)

	// UpdatePR replaces the title and body of a pull
	// request.
	UpdatePR(
		ctx context.Context,
		number int,
		title string,
		body string,
	) error

	// AddLabels adds labels to a pull request.
	AddLabels(
		ctx context.Context,
		number int,
		labels []string,
	) error

	// AddAssignees assigns users to a pull request.
	AddAssignees(
		ctx context.Context,
		number int,
		assignees []string,
	) error

	// AddReviewers requests reviews from users.
	AddReviewers(
		ctx context.Context,
		number int,
		reviewers []string,
	) error

	// GetBranchStatus returns the combined check state
	// of the branch head ("success", "pending",
	// "failure", ...).
	GetBranchStatus(
		ctx context.Context,
		branch string,
	) (string, error)

	// MergePR merges pr and deletes its head branch.
	// Rejection by the host is reported as false with a
	// nil error.
	MergePR(
		ctx context.Context,
		pr *PullRequest,
	) (bool, error)
}
