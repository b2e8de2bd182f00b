// Package gitlab implements platform.Platform on top of the GitLab REST
// API using client-go. Merge requests stand in for pull requests, and a
// multi-file commit is a single commits call with one action per file.
// Assignees and reviewers are set through quick-action notes.
// Rate-limited 403 responses are retried like 502s.
package gitlab
