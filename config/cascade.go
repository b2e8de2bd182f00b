package config

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	errMissingName     = errors.New("missing repository name")
	errMissingFileName = errors.New(
		"package file: missing fileName",
	)
)

// Keys dropped from a per-package-file configuration.
var scopedKeys = []string{
	"repositories",
	"repository",
	"packageFiles",
	"fileName",
}

// PackageFile is one package file of a repository with
// its own overrides.
type PackageFile struct {
	FileName string
	Layer    Layer
}

// Repository is one configured repository with its own
// overrides.
type Repository struct {
	Name         string
	Layer        Layer
	PackageFiles []PackageFile
	// DetectPackageFiles is set when the repository
	// lists no package files; PackageFiles then holds
	// the package.json fallback.
	DetectPackageFiles bool
}

// Global is the validated result of merging the global
// layers.
type Global struct {
	// Config is the global configuration, repositories
	// excluded.
	Config *Config
	// Repositories are the normalized repositories.
	Repositories []Repository

	layer Layer
}

// ResolveGlobal merges defaults, custom and override (in
// that order), validates the result and normalizes the
// repository list: a bare string names a repository,
// repositories without package files get package.json,
// and bare package file strings name the file. The list
// may be empty when autodiscover is on.
func ResolveGlobal(
	defaults Layer,
	custom Layer,
	override Layer,
) (*Global, error) {
	const errCtx = "resolving global config"

	merged := Merge(defaults, custom, override)

	token, _ := merged["token"].(string)
	if token == "" && merged["githubApp"] == nil {
		return nil, fmt.Errorf("%s: %w", errCtx, ErrNoToken)
	}

	if err := validateTemplates(merged); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	autodiscover, _ := merged["autodiscover"].(bool)

	rawRepos := asList(merged["repositories"])
	if len(rawRepos) == 0 && !autodiscover {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, ErrNoRepositories,
		)
	}

	repos := make([]Repository, 0, len(rawRepos))

	for i, raw := range rawRepos {
		repo, err := normalizeRepository(raw)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: repository %d: %w", errCtx, i, err,
			)
		}

		if err := repo.validate(); err != nil {
			return nil, fmt.Errorf(
				"%s: repository %s: %w", errCtx, repo.Name, err,
			)
		}

		repos = append(repos, repo)
	}

	cfg, err := decode(merged.without(scopedKeys...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if cfg.Platform != PlatformGitHub &&
		cfg.Platform != PlatformGitLab {
		return nil, fmt.Errorf(
			"%s: unknown platform %q", errCtx, cfg.Platform,
		)
	}

	slog.Debug(
		"resolved global config",
		"platform", cfg.Platform,
		"repositories", len(repos),
		"dryRun", cfg.DryRun,
	)

	return &Global{
		Config:       cfg,
		Repositories: repos,
		layer:        merged.without("repositories"),
	}, nil
}

// ResolveForRepo narrows g to one package file of one
// repository: the global, repository and package file
// layers are merged in that order and the repository
// selection keys are dropped.
func ResolveForRepo(
	g *Global,
	repo Repository,
	pkg PackageFile,
) (*Config, error) {
	const errCtx = "resolving repository config"

	merged := Merge(g.layer, repo.Layer, pkg.Layer)

	if err := validateTemplates(merged); err != nil {
		return nil, fmt.Errorf(
			"%s: %s %s: %w",
			errCtx, repo.Name, pkg.FileName, err,
		)
	}

	cfg, err := decode(merged.without(scopedKeys...))
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s %s: %w",
			errCtx, repo.Name, pkg.FileName, err,
		)
	}

	cfg.RepoName = repo.Name
	cfg.PackageFile = pkg.FileName

	return cfg, nil
}

// NewRepository builds a repository found at run time,
// such as by autodiscovery. layer holds its overrides and
// may be nil.
func NewRepository(name string, layer Layer) (Repository, error) {
	const errCtx = "creating repository"

	raw := layer.without()
	raw["repository"] = name

	repo, err := normalizeRepository(raw)
	if err != nil {
		return Repository{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := repo.validate(); err != nil {
		return Repository{}, fmt.Errorf(
			"%s: %s: %w", errCtx, name, err,
		)
	}

	return repo, nil
}

// WithPackageFiles returns r processing the named package
// files instead of its configured ones.
func (r Repository) WithPackageFiles(names []string) Repository {
	files := make([]PackageFile, 0, len(names))
	for _, name := range names {
		files = append(files, PackageFile{
			FileName: name,
			Layer:    Layer{"fileName": name},
		})
	}

	r.PackageFiles = files
	r.DetectPackageFiles = false

	return r
}

// validate checks the template overrides of r and its
// package files.
func (r Repository) validate() error {
	if err := validateTemplates(r.Layer); err != nil {
		return err
	}

	for _, pkg := range r.PackageFiles {
		if err := validateTemplates(pkg.Layer); err != nil {
			return fmt.Errorf("%s: %w", pkg.FileName, err)
		}
	}

	return nil
}

func normalizeRepository(raw any) (Repository, error) {
	var layer Layer

	switch v := raw.(type) {
	case string:
		layer = Layer{"repository": v}
	default:
		m, ok := asMap(raw)
		if !ok {
			return Repository{}, fmt.Errorf(
				"unexpected %T", raw,
			)
		}

		layer = Layer(m)
	}

	name, _ := layer["repository"].(string)
	if name == "" {
		return Repository{}, errMissingName
	}

	rawFiles := asList(layer["packageFiles"])
	detect := len(rawFiles) == 0

	if detect {
		rawFiles = []any{DefaultPackageFile}
	}

	files := make([]PackageFile, 0, len(rawFiles))

	for _, rawFile := range rawFiles {
		pkg, err := normalizePackageFile(rawFile)
		if err != nil {
			return Repository{}, fmt.Errorf(
				"%s: %w", name, err,
			)
		}

		files = append(files, pkg)
	}

	return Repository{
		Name:               name,
		Layer:              layer.without("packageFiles"),
		PackageFiles:       files,
		DetectPackageFiles: detect,
	}, nil
}

func normalizePackageFile(raw any) (PackageFile, error) {
	if name, ok := raw.(string); ok {
		return PackageFile{
			FileName: name,
			Layer:    Layer{"fileName": name},
		}, nil
	}

	m, ok := asMap(raw)
	if !ok {
		return PackageFile{}, fmt.Errorf(
			"package file: unexpected %T", raw,
		)
	}

	name, _ := m["fileName"].(string)
	if name == "" {
		return PackageFile{}, errMissingFileName
	}

	return PackageFile{FileName: name, Layer: Layer(m)}, nil
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, 0, len(l))
		for _, s := range l {
			out = append(out, s)
		}

		return out
	default:
		return nil
	}
}
