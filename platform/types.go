package platform

// Pull request states after normalization.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// MergeCapabilities holds the merge methods a repository
// accepts. A nil field means the host did not report it.
type MergeCapabilities struct {
	Rebase *bool
	Squash *bool
	Merge  *bool
}

// Known reports whether the host reported any of the
// capability flags.
func (m MergeCapabilities) Known() bool {
	return m.Rebase != nil ||
		m.Squash != nil ||
		m.Merge != nil
}

// RepoContext is the state of one repository session.
// It is written by Init and read-only afterwards.
type RepoContext struct {
	// Token used to authenticate the session.
	Token string
	// Owner is the user or group owning the repository.
	Owner string
	// Name is the full repository name ("owner/repo").
	Name string
	// BaseBranch is the branch updates are proposed
	// against.
	BaseBranch string
	// BaseCommitSHA is the head of BaseBranch at Init.
	BaseCommitSHA string
	// BaseTreeSHA is the tree of BaseCommitSHA. Empty on
	// platforms without tree primitives.
	BaseTreeSHA string
	// Capabilities caches the merge methods reported by
	// the host.
	Capabilities MergeCapabilities
}

// PullRequest is a pull (or merge) request as seen by the
// update workflow. It is fetched on demand and never
// cached.
type PullRequest struct {
	Number         int
	Title          string
	Body           string
	State          string
	BaseSHA        string
	HeadRef        string
	Commits        int
	MergeableState string
	// CanRebase is derived: one commit, or several
	// commits sharing a single author.
	CanRebase bool
	// IsClosed is set for pull requests in the closed
	// state.
	IsClosed bool
	// IsUnmergeable is set when the host reports
	// conflicts.
	IsUnmergeable bool
	// IsStale is set when the pull request base is
	// behind the current base branch head.
	IsStale bool
	URL     string
}

// FileChange is one file to be written by a commit.
type FileChange struct {
	// Path is relative to the repository root.
	Path string
	// Contents is the full new content.
	Contents string
	// PriorSHA optionally names the blob being replaced.
	PriorSHA string
}
