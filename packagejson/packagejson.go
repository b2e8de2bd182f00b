package packagejson

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Dependency sections, in the order they are reported.
var sections = []string{
	"dependencies",
	"devDependencies",
	"optionalDependencies",
}

// pinnable matches a caret or tilde range on a plain
// semantic version.
var pinnable = regexp.MustCompile(
	`^[\^~](\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)$`,
)

// Dependency is one entry of a dependency section.
type Dependency struct {
	// Type is the section holding the dependency.
	Type    string
	Name    string
	Version string
}

// Upgrade replaces the version of a dependency.
type Upgrade struct {
	Dependency
	NewVersion string
}

// String renders u as a markdown list item.
func (u Upgrade) String() string {
	return fmt.Sprintf(
		"- Pin `%s` (%s) from `%s` to `%s`",
		u.Name, u.Type, u.Version, u.NewVersion,
	)
}

// Extract returns the dependencies of a package.json,
// grouped by section then sorted by name.
func Extract(content []byte) ([]Dependency, error) {
	const errCtx = "extracting package.json dependencies"

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var deps []Dependency

	for _, section := range sections {
		raw, ok := doc[section]
		if !ok {
			continue
		}

		var entries map[string]string
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, section, err,
			)
		}

		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			deps = append(deps, Dependency{
				Type:    section,
				Name:    name,
				Version: entries[name],
			})
		}
	}

	return deps, nil
}

// PinUpgrades returns an upgrade for every dependency
// whose version is a caret or tilde range.
func PinUpgrades(deps []Dependency) []Upgrade {
	var upgrades []Upgrade

	for _, dep := range deps {
		m := pinnable.FindStringSubmatch(dep.Version)
		if m == nil {
			continue
		}

		upgrades = append(upgrades, Upgrade{
			Dependency: dep,
			NewVersion: m[1],
		})
	}

	return upgrades
}

// FormatUpgrades renders upgrades as a markdown list.
func FormatUpgrades(upgrades []Upgrade) string {
	lines := make([]string, 0, len(upgrades))
	for _, u := range upgrades {
		lines = append(lines, u.String())
	}

	return strings.Join(lines, "\n")
}

// Apply rewrites each upgraded version inside its own
// section of content and checks the result parses to the
// new versions.
func Apply(content string, upgrades []Upgrade) (string, error) {
	const errCtx = "applying upgrades"

	out := content

	for _, u := range upgrades {
		next, err := replaceVersion(out, u)
		if err != nil {
			return "", fmt.Errorf("%s: %w", errCtx, err)
		}

		out = next
	}

	deps, err := Extract([]byte(out))
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	got := make(map[[2]string]string, len(deps))
	for _, d := range deps {
		got[[2]string{d.Type, d.Name}] = d.Version
	}

	for _, u := range upgrades {
		if v := got[[2]string{u.Type, u.Name}]; v != u.NewVersion {
			return "", fmt.Errorf(
				"%s: %s %s is %q after rewrite, want %q",
				errCtx, u.Type, u.Name, v, u.NewVersion,
			)
		}
	}

	return out, nil
}

// replaceVersion rewrites the first "name": "version"
// pair of u inside the section object of u.
func replaceVersion(content string, u Upgrade) (string, error) {
	start, end, err := sectionBounds(content, u.Type)
	if err != nil {
		return "", err
	}

	entry := regexp.MustCompile(
		`("` + regexp.QuoteMeta(u.Name) + `"\s*:\s*")` +
			regexp.QuoteMeta(u.Version) + `"`,
	)

	section := content[start:end]

	loc := entry.FindStringSubmatchIndex(section)
	if loc == nil {
		return "", fmt.Errorf(
			"%s %s@%s not found", u.Type, u.Name, u.Version,
		)
	}

	prefixEnd := start + loc[3]
	valueEnd := start + loc[1] - 1

	return content[:prefixEnd] +
		u.NewVersion +
		content[valueEnd:], nil
}

// sectionBounds locates the object value of the
// top-level key section and returns its byte range.
func sectionBounds(content, section string) (int, int, error) {
	key := regexp.MustCompile(
		`"` + regexp.QuoteMeta(section) + `"\s*:\s*\{`,
	)

	loc := key.FindStringIndex(content)
	if loc == nil {
		return 0, 0, fmt.Errorf("section %s not found", section)
	}

	start := loc[1] - 1
	depth := 0
	inString := false

	for i := start; i < len(content); i++ {
		c := content[i]

		switch {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return start, i + 1, nil
			}
		}
	}

	return 0, 0, fmt.Errorf("section %s not terminated", section)
}
