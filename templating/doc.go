// Package templating renders the branch name, pull request title and
// body, and commit message of an update from configured templates. It
// uses valyala/fasttemplate with configurable delimiters (default "{{"
// and "}}").
//
// Tags naming an unknown variable are left in the output unchanged so a
// typo in a template shows up in the pull request rather than silently
// vanishing.
package templating
