package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadFile reads a YAML or JSON configuration file. A
// missing file yields an empty layer.
func LoadFile(path string) (Layer, error) {
	const errCtx = "loading config file"

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no custom config found", "path", path)

			return Layer{}, nil
		}

		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	layer := Layer{}
	if err := yaml.Unmarshal(raw, &layer); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return layer, nil
}

// envKeys maps environment variables onto layer keys.
var envKeys = []struct {
	env string
	key string
}{
	{env: "LOG_LEVEL", key: "logLevel"},
	{env: "RENOVATE_TOKEN", key: "token"},
	{env: "RENOVATE_ENDPOINT", key: "endpoint"},
	{env: "RENOVATE_PLATFORM", key: "platform"},
}

// EnvLayer reads the environment through getenv.
// Unset or empty variables are left out.
func EnvLayer(getenv func(string) string) Layer {
	layer := Layer{}

	for _, ek := range envKeys {
		if v := getenv(ek.env); v != "" {
			layer[ek.key] = v
		}
	}

	return layer
}

// ArgsLayer turns positional arguments
// "repository [packageFile]" into a layer replacing the
// configured repositories. No arguments yield an empty
// layer.
func ArgsLayer(args []string) Layer {
	if len(args) == 0 {
		return Layer{}
	}

	pkg := DefaultPackageFile
	if len(args) > 1 && args[1] != "" {
		pkg = args[1]
	}

	return Layer{
		"repositories": []any{
			map[string]any{
				"repository":   args[0],
				"packageFiles": []any{pkg},
			},
		},
	}
}
