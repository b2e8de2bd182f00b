package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/toptaldev92/renovate/config"
	"github.com/toptaldev92/renovate/packagejson"
	"github.com/toptaldev92/renovate/platform"
	"github.com/toptaldev92/renovate/templating"
)

// Combined branch state required before automerging.
const statusSuccess = "success"

// Factory creates an uninitialized platform session from
// the configuration of one repository.
type Factory func(cfg *config.Config) (platform.Platform, error)

// Discoverer lists the repositories to process when
// autodiscover is on and none are configured.
type Discoverer func(
	ctx context.Context,
	cfg *config.Config,
) ([]config.Repository, error)

// Config holds the settings of a worker run.
type Config struct {
	// Global is the resolved global configuration.
	Global *config.Global

	// NewPlatform opens one session per repository.
	NewPlatform Factory

	// Discover is required when Global lists no
	// repositories.
	Discover Discoverer

	// Engine renders the update templates.
	Engine templating.Engine
}

// Outcome describes what happened to one package file.
type Outcome string

// Package file outcomes.
const (
	OutcomeMissing   Outcome = "missing"
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeBlocked   Outcome = "closed-pr"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Run processes every repository of cfg.Global with at
// most Parallelism repositories in flight. Failing
// repositories do not stop the others; their errors are
// reported together.
func Run(ctx context.Context, cfg Config) error {
	const errCtx = "running worker"

	repos, err := repositories(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	parallelism := cfg.Global.Config.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	slog.Info(
		"processing repositories",
		"count", len(repos),
		"parallelism", parallelism,
	)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	sem := make(chan struct{}, parallelism)

	for _, repo := range repos {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()

			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(r config.Repository) {
			defer wg.Done()
			defer func() { <-sem }()

			if repoErr := processRepository(
				ctx, cfg, r,
			); repoErr != nil {
				slog.Error(
					"repository failed",
					"repository", r.Name,
					"error", repoErr,
				)

				mu.Lock()
				errs = append(errs, repoErr)
				mu.Unlock()
			}
		}(repo)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf(
			"%s: %d errors, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	return nil
}

// repositories returns the configured repositories, or
// the discovered ones when autodiscover is on and none
// are configured.
func repositories(
	ctx context.Context,
	cfg Config,
) ([]config.Repository, error) {
	g := cfg.Global
	if len(g.Repositories) > 0 || !g.Config.Autodiscover {
		return g.Repositories, nil
	}

	if cfg.Discover == nil {
		return nil, errors.New("autodiscover: no discoverer")
	}

	repos, err := cfg.Discover(ctx, g.Config)
	if err != nil {
		return nil, fmt.Errorf("autodiscover: %w", err)
	}

	slog.Info("discovered repositories", "count", len(repos))

	return repos, nil
}

// processRepository opens a platform session for repo and
// processes its package files in order.
func processRepository(
	ctx context.Context,
	cfg Config,
	repo config.Repository,
) error {
	const errCtx = "processing repository"

	repoCfg, err := config.ResolveForRepo(
		cfg.Global, repo, config.PackageFile{},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	p, err := cfg.NewPlatform(repoCfg)
	if err != nil {
		return fmt.Errorf(
			"%s: %s: open platform: %w",
			errCtx, repo.Name, err,
		)
	}

	rc, err := p.Init(ctx, repo.Name)
	if err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, repo.Name, err,
		)
	}

	slog.Info(
		"initialized repository",
		"repository", repo.Name,
		"baseBranch", rc.BaseBranch,
	)

	if repoCfg.Autodiscover && repo.DetectPackageFiles {
		paths, err := p.FindFilePaths(
			ctx, config.DefaultPackageFile,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: detect package files: %w",
				errCtx, repo.Name, err,
			)
		}

		if len(paths) == 0 {
			slog.Info(
				"no package files found",
				"repository", repo.Name,
			)

			return nil
		}

		slog.Debug(
			"detected package files",
			"repository", repo.Name,
			"packageFiles", paths,
		)

		repo = repo.WithPackageFiles(paths)
	}

	for _, pkg := range repo.PackageFiles {
		pkgCfg, err := config.ResolveForRepo(
			cfg.Global, repo, pkg,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		outcome, err := processPackageFile(
			ctx, p, cfg.Engine, pkgCfg,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %s %s: %w",
				errCtx, repo.Name, pkg.FileName, err,
			)
		}

		slog.Info(
			"processed package file",
			"repository", repo.Name,
			"packageFile", pkg.FileName,
			"outcome", outcome,
		)
	}

	return nil
}

// processPackageFile pins the dependencies of one package
// file and brings its update branch and pull request up to
// date.
func processPackageFile(
	ctx context.Context,
	p platform.Platform,
	en templating.Engine,
	cfg *config.Config,
) (Outcome, error) {
	content, found, err := p.GetFileContent(
		ctx, cfg.PackageFile, "",
	)
	if err != nil {
		return "", fmt.Errorf("read package file: %w", err)
	}

	if !found {
		slog.Warn(
			"package file not found",
			"repository", cfg.RepoName,
			"packageFile", cfg.PackageFile,
		)

		return OutcomeMissing, nil
	}

	deps, err := packagejson.Extract([]byte(content))
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	upgrades := packagejson.PinUpgrades(deps)
	if len(upgrades) == 0 {
		return OutcomeUpToDate, nil
	}

	pinned, err := packagejson.Apply(content, upgrades)
	if err != nil {
		return "", fmt.Errorf("apply upgrades: %w", err)
	}

	r := en.RenderTemplates(
		cfg.Templates, templateVars(cfg, upgrades),
	)

	closed, err := p.CheckForClosedPR(
		ctx, r.BranchName, r.PRTitle,
	)
	if err != nil {
		return "", fmt.Errorf("check closed pr: %w", err)
	}

	if closed {
		slog.Info(
			"skipping update with closed pull request",
			"branch", r.BranchName,
			"title", r.PRTitle,
		)

		return OutcomeBlocked, nil
	}

	if cfg.DryRun {
		diff, diffErr := unifiedDiff(
			cfg.PackageFile, content, pinned,
		)
		if diffErr != nil {
			return "", fmt.Errorf("diff: %w", diffErr)
		}

		slog.Info(
			"dry run: would commit",
			"branch", r.BranchName,
			"message", r.CommitMessage,
			"diff", diff,
		)

		return OutcomeDryRun, nil
	}

	if err := ensureBranch(
		ctx, p, cfg.PackageFile, pinned, r,
	); err != nil {
		return "", err
	}

	pr, outcome, err := ensurePR(ctx, p, cfg, r)
	if err != nil {
		return "", err
	}

	if cfg.Automerge {
		if err := automerge(ctx, p, pr); err != nil {
			return "", err
		}
	}

	return outcome, nil
}

// ensureBranch commits pinned to the update branch unless
// the branch already holds exactly that content.
func ensureBranch(
	ctx context.Context,
	p platform.Platform,
	file string,
	pinned string,
	r templating.Rendered,
) error {
	exists, err := p.BranchExists(ctx, r.BranchName)
	if err != nil {
		return fmt.Errorf("check branch: %w", err)
	}

	if exists {
		current, found, err := p.GetFileContent(
			ctx, file, r.BranchName,
		)
		if err != nil {
			return fmt.Errorf("read branch file: %w", err)
		}

		if found && current == pinned {
			slog.Debug(
				"branch already up to date",
				"branch", r.BranchName,
			)

			return nil
		}
	}

	if err := p.CommitFilesToBranch(
		ctx,
		r.BranchName,
		[]platform.FileChange{{Path: file, Contents: pinned}},
		r.CommitMessage,
		"",
	); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// ensurePR refreshes the open pull request of the update
// branch, or opens one and decorates it.
func ensurePR(
	ctx context.Context,
	p platform.Platform,
	cfg *config.Config,
	r templating.Rendered,
) (*platform.PullRequest, Outcome, error) {
	pr, err := p.GetBranchPR(ctx, r.BranchName)
	if err != nil {
		return nil, "", fmt.Errorf("find pr: %w", err)
	}

	if pr != nil {
		if pr.Title == r.PRTitle && pr.Body == r.PRBody {
			return pr, OutcomeUnchanged, nil
		}

		if err := p.UpdatePR(
			ctx, pr.Number, r.PRTitle, r.PRBody,
		); err != nil {
			return nil, "", fmt.Errorf("update pr: %w", err)
		}

		slog.Info(
			"updated pull request",
			"number", pr.Number,
			"url", pr.URL,
		)

		return pr, OutcomeUpdated, nil
	}

	pr, err = p.CreatePR(
		ctx, r.BranchName, r.PRTitle, r.PRBody,
	)
	if err != nil {
		return nil, "", fmt.Errorf("create pr: %w", err)
	}

	slog.Info(
		"created pull request",
		"number", pr.Number,
		"url", pr.URL,
	)

	decorate(ctx, p, pr.Number, cfg)

	return pr, OutcomeCreated, nil
}

// decorate adds labels, assignees and reviewers to a new
// pull request. Failures are logged only.
func decorate(
	ctx context.Context,
	p platform.Platform,
	number int,
	cfg *config.Config,
) {
	steps := []struct {
		name   string
		values []string
		add    func(context.Context, int, []string) error
	}{
		{"labels", cfg.Labels, p.AddLabels},
		{"assignees", cfg.Assignees, p.AddAssignees},
		{"reviewers", cfg.Reviewers, p.AddReviewers},
	}

	for _, s := range steps {
		if len(s.values) == 0 {
			continue
		}

		if err := s.add(ctx, number, s.values); err != nil {
			slog.Warn(
				"failed to decorate pull request",
				"number", number,
				"step", s.name,
				"error", err,
			)
		}
	}
}

// automerge merges pr when its branch checks succeeded.
func automerge(
	ctx context.Context,
	p platform.Platform,
	pr *platform.PullRequest,
) error {
	if pr.IsUnmergeable {
		slog.Info(
			"pull request has conflicts, not merging",
			"number", pr.Number,
		)

		return nil
	}

	status, err := p.GetBranchStatus(ctx, pr.HeadRef)
	if err != nil {
		return fmt.Errorf("branch status: %w", err)
	}

	if status != statusSuccess {
		slog.Debug(
			"branch checks not successful yet",
			"branch", pr.HeadRef,
			"status", status,
		)

		return nil
	}

	if _, err := p.MergePR(ctx, pr); err != nil {
		return fmt.Errorf("merge pr: %w", err)
	}

	return nil
}

// templateVars builds the template variables of a package
// file update.
func templateVars(
	cfg *config.Config,
	upgrades []packagejson.Upgrade,
) map[string]string {
	dir := path.Dir(cfg.PackageFile)
	if dir == "." {
		dir = ""
	} else {
		dir += "/"
	}

	return map[string]string{
		"repository":  cfg.RepoName,
		"packageFile": cfg.PackageFile,
		"packageDir":  dir,
		"baseBranch":  cfg.BaseBranch,
		"upgrades":    packagejson.FormatUpgrades(upgrades),
	}
}

// unifiedDiff renders the change from before to after as a
// unified diff of file.
func unifiedDiff(file, before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + file,
		ToFile:   "b/" + file,
		Context:  3,
	})
}
