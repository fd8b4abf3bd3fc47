// Package workspace materializes submissions onto the local filesystem.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"

	"github.com/google/uuid"
)

const (
	testcaseDirName = "testcases"
	buildDirName    = "build"
	inputNameFormat = "%06d.txt"
)

// Workspace is the isolated directory owned by one execution run.
type Workspace struct {
	ID          string
	Dir         string
	SourcePath  string
	TestcaseDir string
	BuildDir    string

	cleanupOnce sync.Once
	cleanupErr  error
}

// InputPath returns the input file for the test case at index i.
func (w *Workspace) InputPath(i int) string {
	return filepath.Join(w.TestcaseDir, fmt.Sprintf(inputNameFormat, i))
}

// ListInputs returns input paths in positional order.
func (w *Workspace) ListInputs() ([]string, error) {
	entries, err := os.ReadDir(w.TestcaseDir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceStorageError, "read testcase dir failed")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(w.TestcaseDir, name))
	}
	return paths, nil
}

// Cleanup removes the workspace tree. Safe to call more than once.
func (w *Workspace) Cleanup() error {
	w.cleanupOnce.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			w.cleanupErr = appErr.Wrapf(err, appErr.WorkspaceStorageError, "remove workspace failed")
		}
	})
	return w.cleanupErr
}

// Materializer writes source and test inputs under a root directory.
type Materializer struct {
	root  string
	newID func() string
}

// NewMaterializer creates the root directory if needed.
func NewMaterializer(root string) (*Materializer, error) {
	if root == "" {
		return nil, fmt.Errorf("work root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve work root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	return &Materializer{root: abs, newID: uuid.NewString}, nil
}

// Materialize allocates a fresh workspace and writes the source and inputs.
// On failure nothing is left behind.
func (m *Materializer) Materialize(ctx context.Context, lang profile.LanguageSpec, source string, inputs []string) (ws *Workspace, err error) {
	if ctx.Err() != nil {
		return nil, appErr.Wrapf(context.Cause(ctx), appErr.SubmissionAborted, "materialize canceled")
	}
	id := m.newID()
	dir := filepath.Join(m.root, id)
	ws = &Workspace{
		ID:          id,
		Dir:         dir,
		SourcePath:  filepath.Join(dir, lang.SourceName(id)),
		TestcaseDir: filepath.Join(dir, testcaseDirName),
		BuildDir:    filepath.Join(dir, buildDirName),
	}

	// Mkdir, not MkdirAll: an existing directory means an id collision.
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceStorageError, "create workspace failed")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
			ws = nil
		}
	}()

	for _, sub := range []string{ws.TestcaseDir, ws.BuildDir} {
		if err := os.Mkdir(sub, 0o755); err != nil {
			return nil, appErr.Wrapf(err, appErr.WorkspaceStorageError, "create workspace subdir failed")
		}
	}
	if err := os.WriteFile(ws.SourcePath, []byte(source), 0o644); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceStorageError, "write source failed")
	}
	for i, input := range inputs {
		if ctx.Err() != nil {
			return nil, appErr.Wrapf(context.Cause(ctx), appErr.SubmissionAborted, "materialize canceled")
		}
		if err := os.WriteFile(ws.InputPath(i), []byte(input), 0o644); err != nil {
			return nil, appErr.Wrapf(err, appErr.WorkspaceStorageError, "write testcase input failed")
		}
	}
	return ws, nil
}
