package config

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"

	"github.com/google/shlex"
)

// LanguageDefinition is the configuration form of one language strategy.
// Command templates are parsed once into argument vectors.
type LanguageDefinition struct {
	ID               string   `yaml:"id"`
	SourceExt        string   `yaml:"sourceExt"`
	SourceFile       string   `yaml:"sourceFile"`
	BinaryFile       string   `yaml:"binaryFile"`
	Compile          string   `yaml:"compile"`
	Run              string   `yaml:"run"`
	ExtraFlags       []string `yaml:"extraFlags"`
	Env              []string `yaml:"env"`
	TimeMultiplier   float64  `yaml:"timeMultiplier"`
	MemoryMultiplier float64  `yaml:"memoryMultiplier"`
	UnlimitedMemory  bool     `yaml:"unlimitedMemory"`
}

// LocalRepository serves language specs from memory. It is never mutated
// after construction.
type LocalRepository struct {
	languages map[string]profile.LanguageSpec
}

// NewLocalRepository validates definitions and builds the registry.
func NewLocalRepository(defs []LanguageDefinition) (*LocalRepository, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}
	langMap := make(map[string]profile.LanguageSpec, len(defs))
	for _, def := range defs {
		lang, err := def.toSpec()
		if err != nil {
			return nil, err
		}
		if _, ok := langMap[lang.ID]; ok {
			return nil, fmt.Errorf("duplicate language %q", lang.ID)
		}
		langMap[lang.ID] = lang
	}
	return &LocalRepository{languages: langMap}, nil
}

// GetLanguageSpec returns a copy of the language spec.
func (r *LocalRepository) GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error) {
	if id == "" {
		return profile.LanguageSpec{}, appErr.ValidationError("language", "required")
	}
	lang, ok := r.languages[id]
	if !ok {
		return profile.LanguageSpec{}, appErr.UnsupportedLanguage(id)
	}
	return lang.Clone(), nil
}

// Languages lists registered language ids in sorted order.
func (r *LocalRepository) Languages() []string {
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d LanguageDefinition) toSpec() (profile.LanguageSpec, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return profile.LanguageSpec{}, fmt.Errorf("language id is required")
	}
	if d.SourceExt == "" && d.SourceFile == "" {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: sourceExt or sourceFile is required", id)
	}
	if strings.ContainsAny(d.SourceFile, `/\`) || strings.ContainsAny(d.BinaryFile, `/\`) {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: file names must not contain path separators", id)
	}
	runCmd, err := parseTemplate(d.Run)
	if err != nil {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: run: %w", id, err)
	}
	if len(runCmd) == 0 {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: run template is required", id)
	}
	compileCmd, err := parseTemplate(d.Compile)
	if err != nil {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: compile: %w", id, err)
	}
	if len(compileCmd) > 0 && d.BinaryFile == "" {
		return profile.LanguageSpec{}, fmt.Errorf("language %q: binaryFile is required when compile is set", id)
	}
	return profile.LanguageSpec{
		ID:               id,
		SourceExt:        strings.TrimPrefix(d.SourceExt, "."),
		SourceFile:       d.SourceFile,
		BinaryFile:       d.BinaryFile,
		CompileCmd:       compileCmd,
		RunCmd:           runCmd,
		ExtraFlags:       append([]string(nil), d.ExtraFlags...),
		Env:              append([]string(nil), d.Env...),
		TimeMultiplier:   d.TimeMultiplier,
		MemoryMultiplier: d.MemoryMultiplier,
		UnlimitedMemory:  d.UnlimitedMemory,
	}, nil
}

func parseTemplate(tpl string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, nil
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	return fields, nil
}
