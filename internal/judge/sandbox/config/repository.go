// Package config builds the read-only language strategy registry.
package config

import (
	"context"

	"codejudge/internal/judge/sandbox/profile"
)

// LanguageSpecRepository resolves language strategies by id.
type LanguageSpecRepository interface {
	GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error)
}
