// Package platform defines the strategy interface for talking to a git
// hosting platform and the domain types shared by its implementations.
//
// A Platform is a per-repository session: Init resolves the repository's
// base branch, head commit and merge capabilities into a RepoContext, and
// every later call operates on that repository. Implementations exist for
// GitHub and GitLab in sub-packages. Sessions must not be shared across
// concurrently processed repositories.
package platform
