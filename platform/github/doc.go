// Package github implements platform.Platform on top of the GitHub REST
// API (cloud or enterprise).
//
// Every call goes through Client.Invoke, which retries 502 responses and
// rate-limit / abuse-detection 403 responses with backoff and returns any
// other failure unchanged, and which decorates the Accept header when
// the client runs in GitHub App ("app") mode.
//
// On top of it the Client offers the repository operations (branch and
// file lookups, pull request CRUD, labels, assignees, reviewers), a commit
// builder that writes several files as one commit through the blob, tree,
// commit and ref primitives, and a merge negotiator that tries rebase,
// squash and merge in turn.
//
// Discovery lists the repositories a token or app installation can
// reach and finds package files through code search.
package github
