// Package profile describes how one language is built and run.
package profile

// LanguageSpec is an immutable build+run recipe for one language tag.
// Commands are argument vectors with placeholders; no shell is involved.
type LanguageSpec struct {
	ID         string
	SourceExt  string
	SourceFile string
	BinaryFile string
	CompileCmd []string
	RunCmd     []string
	ExtraFlags []string
	Env        []string

	TimeMultiplier   float64
	MemoryMultiplier float64
	// UnlimitedMemory skips the address-space ceiling for runtimes that
	// reserve large virtual regions up front.
	UnlimitedMemory bool
}

// CompileEnabled reports whether a separate compile step runs before tests.
func (l LanguageSpec) CompileEnabled() bool {
	return len(l.CompileCmd) > 0
}

// SourceName returns the file name the source is written to for a workspace id.
func (l LanguageSpec) SourceName(id string) string {
	if l.SourceFile != "" {
		return l.SourceFile
	}
	if l.SourceExt == "" {
		return id
	}
	return id + "." + l.SourceExt
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (l LanguageSpec) Clone() LanguageSpec {
	l.CompileCmd = append([]string(nil), l.CompileCmd...)
	l.RunCmd = append([]string(nil), l.RunCmd...)
	l.ExtraFlags = append([]string(nil), l.ExtraFlags...)
	l.Env = append([]string(nil), l.Env...)
	return l
}
