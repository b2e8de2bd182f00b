package worker_test

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"

	"github.com/toptaldev92/renovate/platform"
)

const baseBranch = "master"

var errFake = errors.New("fake failure")

// fakePlatform is an in-memory platform session. Files
// are keyed by branch then path.
type fakePlatform struct {
	mu sync.Mutex

	repo      string
	files     map[string]map[string]string
	closedPRs map[string]string
	prs       map[string]*platform.PullRequest
	status    string
	nextPR    int

	initErr   error
	commitErr error
	labelErr  error
	findErr   error

	calls   []string
	commits []fakeCommit
	updates []string
	labels  []string
	assign  []string
	review  []string
	merged  []int
}

type fakeCommit struct {
	branch  string
	message string
	files   []platform.FileChange
}

func newFakePlatform(pkg string) *fakePlatform {
	return &fakePlatform{
		files: map[string]map[string]string{
			baseBranch: {"package.json": pkg},
		},
		closedPRs: map[string]string{},
		prs:       map[string]*platform.PullRequest{},
		status:    "pending",
		nextPR:    1,
	}
}

func (f *fakePlatform) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakePlatform) branch(b string) string {
	if b == "" {
		return baseBranch
	}

	return b
}

func (f *fakePlatform) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.calls {
		if c == call {
			return true
		}
	}

	return false
}

func (f *fakePlatform) Init(
	_ context.Context,
	repoName string,
) (*platform.RepoContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Init")

	if f.initErr != nil {
		return nil, f.initErr
	}

	f.repo = repoName

	return &platform.RepoContext{
		Name:       repoName,
		BaseBranch: baseBranch,
	}, nil
}

func (f *fakePlatform) BranchExists(
	_ context.Context,
	branch string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("BranchExists")

	_, ok := f.files[branch]

	return ok, nil
}

func (f *fakePlatform) GetBranchPR(
	_ context.Context,
	branch string,
) (*platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("GetBranchPR")

	return f.prs[branch], nil
}

func (f *fakePlatform) FindPR(
	_ context.Context,
	branch string,
	_ string,
	_ string,
) (*platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.prs[branch], nil
}

func (f *fakePlatform) CheckForClosedPR(
	_ context.Context,
	branch string,
	title string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CheckForClosedPR")

	t, ok := f.closedPRs[branch]

	return ok && t == title, nil
}

func (f *fakePlatform) GetFileContent(
	_ context.Context,
	path string,
	branch string,
) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("GetFileContent")

	content, ok := f.files[f.branch(branch)][path]

	return content, ok, nil
}

func (f *fakePlatform) FindFilePaths(
	_ context.Context,
	fileName string,
) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("FindFilePaths")

	if f.findErr != nil {
		return nil, f.findErr
	}

	var paths []string

	for p := range f.files[baseBranch] {
		if path.Base(p) == fileName {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths, nil
}

func (f *fakePlatform) CommitFilesToBranch(
	_ context.Context,
	branch string,
	files []platform.FileChange,
	message string,
	parentBranch string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CommitFilesToBranch")

	if f.commitErr != nil {
		return f.commitErr
	}

	tree, ok := f.files[branch]
	if !ok {
		tree = map[string]string{}
		for p, c := range f.files[f.branch(parentBranch)] {
			tree[p] = c
		}

		f.files[branch] = tree
	}

	for _, fc := range files {
		tree[fc.Path] = fc.Contents
	}

	f.commits = append(f.commits, fakeCommit{
		branch:  branch,
		message: message,
		files:   files,
	})

	return nil
}

func (f *fakePlatform) CreatePR(
	_ context.Context,
	branch string,
	title string,
	body string,
) (*platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreatePR")

	pr := &platform.PullRequest{
		Number:  f.nextPR,
		Title:   title,
		Body:    body,
		State:   platform.StateOpen,
		HeadRef: branch,
	}
	f.nextPR++
	f.prs[branch] = pr

	return pr, nil
}

func (f *fakePlatform) UpdatePR(
	_ context.Context,
	number int,
	title string,
	body string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("UpdatePR")
	f.updates = append(f.updates, title)

	for _, pr := range f.prs {
		if pr.Number == number {
			pr.Title = title
			pr.Body = body
		}
	}

	return nil
}

func (f *fakePlatform) AddLabels(
	_ context.Context,
	_ int,
	labels []string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("AddLabels")

	if f.labelErr != nil {
		return f.labelErr
	}

	f.labels = append(f.labels, labels...)

	return nil
}

func (f *fakePlatform) AddAssignees(
	_ context.Context,
	_ int,
	assignees []string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("AddAssignees")
	f.assign = append(f.assign, assignees...)

	return nil
}

func (f *fakePlatform) AddReviewers(
	_ context.Context,
	_ int,
	reviewers []string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("AddReviewers")
	f.review = append(f.review, reviewers...)

	return nil
}

func (f *fakePlatform) GetBranchStatus(
	_ context.Context,
	_ string,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("GetBranchStatus")

	return f.status, nil
}

func (f *fakePlatform) MergePR(
	_ context.Context,
	pr *platform.PullRequest,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("MergePR")
	f.merged = append(f.merged, pr.Number)

	return true, nil
}
