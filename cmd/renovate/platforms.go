package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/toptaldev92/renovate/config"
	"github.com/toptaldev92/renovate/platform"
	"github.com/toptaldev92/renovate/platform/github"
	"github.com/toptaldev92/renovate/platform/gitlab"
)

// newPlatform opens an uninitialized session on the
// platform cfg names. Pattern: Factory -- selects the
// platform implementation at runtime.
func newPlatform(cfg *config.Config) (platform.Platform, error) {
	const errCtx = "creating platform"

	switch cfg.Platform {
	case config.PlatformGitHub:
		client, err := newGitHub(cfg, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return client, nil
	case config.PlatformGitLab:
		client, err := newGitLab(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf(
			"%s: unknown platform %q", errCtx, cfg.Platform,
		)
	}
}

// discoverRepositories lists the repositories available
// to the configured credentials. A GitHub App without an
// installation id is searched across all its
// installations, each repository keeping its own.
func discoverRepositories(
	ctx context.Context,
	cfg *config.Config,
) ([]config.Repository, error) {
	const errCtx = "discovering repositories"

	var (
		names []string
		err   error
	)

	switch {
	case cfg.Platform == config.PlatformGitLab:
		var client *gitlab.Client

		if client, err = newGitLab(cfg); err == nil {
			names, err = client.GetRepos(ctx)
		}
	case cfg.Platform != config.PlatformGitHub:
		err = fmt.Errorf("unknown platform %q", cfg.Platform)
	case cfg.GitHubApp == nil:
		var client *github.Client

		if client, err = newGitHub(cfg, false); err == nil {
			names, err = client.GetRepos(ctx)
		}
	case cfg.GitHubApp.InstallationID == 0:
		repos, err := discoverInstallations(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return repos, nil
	default:
		var client *github.Client

		if client, err = newGitHub(cfg, false); err == nil {
			names, err = client.GetInstallationRepositories(ctx)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	repos := make([]config.Repository, 0, len(names))

	for _, name := range names {
		repo, err := config.NewRepository(name, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		repos = append(repos, repo)
	}

	return repos, nil
}

// discoverInstallations lists the repositories of every
// installation of the app in cfg.
func discoverInstallations(
	ctx context.Context,
	cfg *config.Config,
) ([]config.Repository, error) {
	apps, err := newGitHub(cfg, true)
	if err != nil {
		return nil, err
	}

	ids, err := apps.GetInstallations(ctx)
	if err != nil {
		return nil, err
	}

	var repos []config.Repository

	for _, id := range ids {
		instCfg := *cfg
		app := *cfg.GitHubApp
		app.InstallationID = id
		instCfg.GitHubApp = &app

		client, err := newGitHub(&instCfg, false)
		if err != nil {
			return nil, err
		}

		names, err := client.GetInstallationRepositories(ctx)
		if err != nil {
			return nil, fmt.Errorf("installation %d: %w", id, err)
		}

		slog.Debug(
			"discovered installation repositories",
			"installation", id,
			"count", len(names),
		)

		for _, name := range names {
			repo, err := config.NewRepository(name, config.Layer{
				"githubApp": map[string]any{"installationId": id},
			})
			if err != nil {
				return nil, err
			}

			repos = append(repos, repo)
		}
	}

	return repos, nil
}

// newGitHub creates a GitHub client for cfg. A configured
// app authenticates as its installation, or as the app
// itself when asApp is set.
func newGitHub(cfg *config.Config, asApp bool) (*github.Client, error) {
	ghCfg := github.Config{
		Token:      cfg.Token,
		Endpoint:   cfg.Endpoint,
		BaseBranch: cfg.BaseBranch,
		AppMode:    cfg.AppMode,
	}

	if app := cfg.GitHubApp; app != nil {
		appCfg := github.AppConfig{
			AppID:          app.AppID,
			InstallationID: app.InstallationID,
			PrivateKeyPath: app.PrivateKeyPath,
			Endpoint:       cfg.Endpoint,
		}

		var (
			httpClient *http.Client
			err        error
		)

		if asApp {
			httpClient, err = github.NewAppsHTTPClient(appCfg)
		} else {
			httpClient, err = github.NewAppHTTPClient(appCfg)
		}

		if err != nil {
			return nil, err
		}

		ghCfg.HTTPClient = httpClient
		ghCfg.AppMode = true
	}

	return github.New(ghCfg)
}

func newGitLab(cfg *config.Config) (*gitlab.Client, error) {
	return gitlab.New(gitlab.Config{
		Token:      cfg.Token,
		Endpoint:   cfg.Endpoint,
		BaseBranch: cfg.BaseBranch,
	})
}
