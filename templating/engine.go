package templating

import (
	"io"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/toptaldev92/renovate/config"
)

// Engine renders templates against string variables.
// The zero value uses "{{" and "}}" delimiters.
type Engine struct {
	StartTag string
	EndTag   string
}

// Rendered holds the rendered templates of one update.
type Rendered struct {
	BranchName    string
	PRTitle       string
	PRBody        string
	CommitMessage string
}

// Render substitutes vars into tpl. Whitespace around a
// tag name is ignored.
func (en Engine) Render(
	tpl string,
	vars map[string]string,
) string {
	startTag, endTag := en.tags()

	return fasttemplate.ExecuteFuncString(
		tpl, startTag, endTag,
		func(w io.Writer, tag string) (int, error) {
			if val, ok := vars[strings.TrimSpace(tag)]; ok {
				return io.WriteString(w, val)
			}

			return io.WriteString(w, startTag+tag+endTag)
		},
	)
}

// RenderTemplates renders every template of t.
func (en Engine) RenderTemplates(
	t config.Templates,
	vars map[string]string,
) Rendered {
	return Rendered{
		BranchName:    en.Render(t.BranchName, vars),
		PRTitle:       en.Render(t.PRTitle, vars),
		PRBody:        en.Render(t.PRBody, vars),
		CommitMessage: en.Render(t.CommitMessage, vars),
	}
}

// tags returns the configured start/end tags, falling
// back to double-brace defaults.
func (en Engine) tags() (string, string) {
	startTag := en.StartTag
	if startTag == "" {
		startTag = "{{"
	}

	endTag := en.EndTag
	if endTag == "" {
		endTag = "}}"
	}

	return startTag, endTag
}
