// Package worker runs the dependency pinning workflow over
// every configured repository.
//
// For each package file of a repository it reads the file
// from the base branch, pins ranged dependency versions,
// renders the branch and pull request templates, commits
// the rewritten file to the update branch, then creates or
// refreshes the pull request and optionally merges it once
// the branch checks pass.
//
// Repositories are processed through a bounded worker pool;
// each gets its own platform session. With autodiscover on,
// an empty repository list is filled by the discoverer and
// package files are searched for when none are listed.
package worker
