package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

// AppConfig identifies a GitHub App installation.
type AppConfig struct {
	AppID          int64
	InstallationID int64
	// PrivateKey is the PEM encoded app key. When empty
	// the key is read from PrivateKeyPath.
	PrivateKey     []byte
	PrivateKeyPath string
	// Endpoint is the API base URL for GitHub
	// Enterprise. Empty means api.github.com.
	Endpoint string
}

// NewAppHTTPClient returns an HTTP client authenticating
// as the app installation. Pass it as Config.HTTPClient
// together with Config.AppMode.
func NewAppHTTPClient(cfg AppConfig) (*http.Client, error) {
	const errCtx = "creating github app transport"

	if cfg.AppID == 0 || cfg.InstallationID == 0 {
		return nil, fmt.Errorf(
			"%s: app id and installation id must be set",
			errCtx,
		)
	}

	itr, err := installationTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &http.Client{Transport: itr}, nil
}

// NewAppsHTTPClient returns an HTTP client authenticating
// as the app itself with a signed JWT. Only app-level
// endpoints such as GetInstallations accept it.
func NewAppsHTTPClient(cfg AppConfig) (*http.Client, error) {
	const errCtx = "creating github app jwt transport"

	if cfg.AppID == 0 {
		return nil, fmt.Errorf("%s: app id must be set", errCtx)
	}

	atr, err := appsTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &http.Client{Transport: atr}, nil
}

// InstallationToken exchanges the app key for an access
// token of the installation in cfg.
func InstallationToken(
	ctx context.Context,
	cfg AppConfig,
) (string, error) {
	const errCtx = "getting github installation token"

	if cfg.AppID == 0 || cfg.InstallationID == 0 {
		return "", fmt.Errorf(
			"%s: app id and installation id must be set",
			errCtx,
		)
	}

	itr, err := installationTransport(cfg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	token, err := itr.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return token, nil
}

func installationTransport(
	cfg AppConfig,
) (*ghinstallation.Transport, error) {
	atr, err := appsTransport(cfg)
	if err != nil {
		return nil, err
	}

	return ghinstallation.NewFromAppsTransport(
		atr, cfg.InstallationID,
	), nil
}

func appsTransport(
	cfg AppConfig,
) (*ghinstallation.AppsTransport, error) {
	var (
		atr *ghinstallation.AppsTransport
		err error
	)

	if len(cfg.PrivateKey) > 0 {
		atr, err = ghinstallation.NewAppsTransport(
			http.DefaultTransport, cfg.AppID, cfg.PrivateKey,
		)
	} else {
		atr, err = ghinstallation.NewAppsTransportKeyFromFile(
			http.DefaultTransport, cfg.AppID, cfg.PrivateKeyPath,
		)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Endpoint != "" {
		atr.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return atr, nil
}
