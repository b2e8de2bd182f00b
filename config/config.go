package config

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Validation errors of ResolveGlobal.
var (
	ErrNoToken = errors.New(
		"a token or a github app must be configured",
	)
	ErrNoRepositories = errors.New(
		"at least one repository must be configured " +
			"unless autodiscover is on",
	)
	ErrInvalidTemplates = errors.New("templates must be a mapping")
)

// Supported platforms.
const (
	PlatformGitHub = "github"
	PlatformGitLab = "gitlab"
)

// DefaultPackageFile is used for repositories that list
// no package files.
const DefaultPackageFile = "package.json"

// Templates holds the text templates of branch names,
// pull requests and commits.
type Templates struct {
	BranchName    string `json:"branchName"`
	PRTitle       string `json:"prTitle"`
	PRBody        string `json:"prBody"`
	CommitMessage string `json:"commitMessage"`
}

// GitHubApp identifies a GitHub App installation used
// instead of a personal token transport.
type GitHubApp struct {
	AppID          int64  `json:"appId"`
	InstallationID int64  `json:"installationId"`
	PrivateKeyPath string `json:"privateKeyPath"`
}

// Config is the resolved configuration of one package
// file, or of the run as a whole for Global.Config.
type Config struct {
	Token        string     `json:"token"`
	Endpoint     string     `json:"endpoint"`
	Platform     string     `json:"platform"`
	LogLevel     string     `json:"logLevel"`
	BaseBranch   string     `json:"baseBranch"`
	Labels       []string   `json:"labels"`
	Assignees    []string   `json:"assignees"`
	Reviewers    []string   `json:"reviewers"`
	Automerge    bool       `json:"automerge"`
	DryRun       bool       `json:"dryRun"`
	Parallelism  int        `json:"parallelism"`
	AppMode      bool       `json:"appMode"`
	GitHubApp    *GitHubApp `json:"githubApp"`
	Templates    Templates  `json:"templates"`
	Autodiscover bool       `json:"autodiscover"`

	// RepoName is the repository being processed.
	RepoName string `json:"-"`
	// PackageFile is the package file being processed.
	PackageFile string `json:"-"`
}

// Defaults returns the built-in configuration layer.
func Defaults() Layer {
	return Layer{
		"platform":     PlatformGitHub,
		"logLevel":     "info",
		"labels":       []any{},
		"assignees":    []any{},
		"reviewers":    []any{},
		"automerge":    false,
		"autodiscover": false,
		"parallelism":  1,
		"templates": map[string]any{
			"branchName": "renovate/{{packageDir}}pin-dependencies",
			"prTitle":    "Pin Dependencies",
			"prBody": "This Pull Request pins the dependencies of " +
				"`{{packageFile}}` to exact versions.\n\n" +
				"{{upgrades}}\n",
			"commitMessage": "Pin dependencies in {{packageFile}}",
		},
	}
}

// decode converts a layer into a Config.
func decode(l Layer) (*Config, error) {
	raw, err := json.Marshal(map[string]any(l))
	if err != nil {
		return nil, fmt.Errorf("encoding layer: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding layer: %w", err)
	}

	return &cfg, nil
}
