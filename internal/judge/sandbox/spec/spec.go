// Package spec defines process run parameters and resource limits.
package spec

// ResourceLimit describes hard limits enforced by the engine.
// Zero means unlimited.
type ResourceLimit struct {
	WallTimeMs  int64
	MemoryMB    int64
	OutputBytes int64
	PIDs        int64
}

// Merge overlays the positive fields of override onto base.
func (base ResourceLimit) Merge(override ResourceLimit) ResourceLimit {
	if override.WallTimeMs > 0 {
		base.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		base.MemoryMB = override.MemoryMB
	}
	if override.OutputBytes > 0 {
		base.OutputBytes = override.OutputBytes
	}
	if override.PIDs > 0 {
		base.PIDs = override.PIDs
	}
	return base
}

// RunSpec describes how to launch one process.
type RunSpec struct {
	SubmissionID string
	TestID       string
	WorkDir      string
	Cmd          []string
	Env          []string
	// StdinPath is redirected to standard input. Empty means no input.
	StdinPath string
	Limits    ResourceLimit
}
