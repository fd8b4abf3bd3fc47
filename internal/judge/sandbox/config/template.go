package config

import (
	"path/filepath"
	"strings"

	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"
)

const extraFlagsPlaceholder = "{extraFlags}"

// Paths holds the concrete locations substituted into command templates.
type Paths struct {
	Dir    string
	Source string
	Build  string
}

func (p Paths) replacer(lang profile.LanguageSpec) *strings.Replacer {
	bin := ""
	if lang.BinaryFile != "" {
		bin = filepath.Join(p.Build, lang.BinaryFile)
	}
	return strings.NewReplacer(
		"{src}", p.Source,
		"{bin}", bin,
		"{dir}", p.Dir,
		"{build}", p.Build,
	)
}

// ExpandCommand substitutes placeholders argument by argument.
// An argument that is exactly {extraFlags} splices zero or more flags.
func ExpandCommand(tpl []string, lang profile.LanguageSpec, paths Paths) ([]string, error) {
	if len(tpl) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	rep := paths.replacer(lang)
	out := make([]string, 0, len(tpl)+len(lang.ExtraFlags))
	for _, arg := range tpl {
		if arg == extraFlagsPlaceholder {
			out = append(out, lang.ExtraFlags...)
			continue
		}
		out = append(out, rep.Replace(arg))
	}
	if len(out) == 0 || out[0] == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return out, nil
}

// ExpandEnv substitutes path placeholders inside KEY=VALUE pairs.
func ExpandEnv(env []string, lang profile.LanguageSpec, paths Paths) []string {
	if len(env) == 0 {
		return nil
	}
	rep := paths.replacer(lang)
	out := make([]string, 0, len(env))
	for _, kv := range env {
		out = append(out, rep.Replace(kv))
	}
	return out
}
