// Package result defines sandbox execution results and verdict aggregation.
package result

// JudgeStatus represents the lifecycle state of a submission.
type JudgeStatus string

const (
	StatusMaterializing JudgeStatus = "Materializing"
	StatusCompiling     JudgeStatus = "Compiling"
	StatusRunning       JudgeStatus = "Running"
	StatusAggregating   JudgeStatus = "Aggregating"
	StatusDone          JudgeStatus = "Done"
	StatusAborted       JudgeStatus = "Aborted"
)

// Terminal reports whether no further transition can follow.
func (s JudgeStatus) Terminal() bool {
	return s == StatusDone || s == StatusAborted
}

// Verdict represents the classification of a test case or a submission.
type Verdict string

const (
	VerdictAccepted            Verdict = "Accepted"
	VerdictWrongAnswer         Verdict = "WrongAnswer"
	VerdictTimeLimitExceeded   Verdict = "TimeLimitExceeded"
	VerdictRuntimeError        Verdict = "RuntimeError"
	VerdictCompileError        Verdict = "CompileError"
	VerdictExecutionInfraError Verdict = "ExecutionInfraError"
	// VerdictAborted marks a test case that never got a verdict of its own
	// because the submission stopped early.
	VerdictAborted Verdict = "Aborted"
)

var verdictRank = map[Verdict]int{
	VerdictAccepted:            0,
	VerdictWrongAnswer:         1,
	VerdictTimeLimitExceeded:   2,
	VerdictRuntimeError:        3,
	VerdictExecutionInfraError: 4,
	VerdictAborted:             4,
	VerdictCompileError:        5,
}

// Worst returns the highest-precedence verdict among vs.
// Aborted ranks as ExecutionInfraError. An empty input yields Accepted.
func Worst(vs ...Verdict) Verdict {
	worst := VerdictAccepted
	for _, v := range vs {
		if verdictRank[v] > verdictRank[worst] {
			worst = v
		}
	}
	if worst == VerdictAborted {
		return VerdictExecutionInfraError
	}
	return worst
}

// RunResult captures raw process execution data. It reports facts only.
type RunResult struct {
	ExitCode       int
	Signal         string
	Stdout         string
	Stderr         string
	CPUTimeMs      int64
	// WallTimeMs ends when the program exits, not when its output pipes close.
	WallTimeMs     int64
	MemoryKB       int64
	TimedOut       bool
	OutputExceeded bool
	OomKilled      bool
	Canceled       bool
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK       bool
	ExitCode int
	TimeMs   int64
	TimedOut bool
	Error    string
}

// Diagnostics is the literal triple kept for the first failing test case.
type Diagnostics struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// TestcaseResult contains per-testcase execution outcomes.
type TestcaseResult struct {
	Index       int
	Verdict     Verdict
	Message     string
	Stdout      string
	Stderr      string
	ExitCode    int
	TimeMs      int64
	MemoryKB    int64
	Diagnostics *Diagnostics
}

// Attempted reports whether the case produced a verdict of its own.
func (r TestcaseResult) Attempted() bool {
	return r.Verdict != VerdictAborted
}

// JudgeResult is the unified response structure for a submission.
type JudgeResult struct {
	SubmissionID string
	Status       JudgeStatus
	Verdict      Verdict
	Language     string
	Compile      *CompileResult
	Tests        []TestcaseResult
	Total        int
	FirstFailure int
}

// Attempted counts test cases that ran to a verdict.
func (r JudgeResult) Attempted() int {
	n := 0
	for _, tc := range r.Tests {
		if tc.Attempted() {
			n++
		}
	}
	return n
}

// Verdicts lists per-test verdicts in index order.
func (r JudgeResult) Verdicts() []Verdict {
	out := make([]Verdict, 0, len(r.Tests))
	for _, tc := range r.Tests {
		out = append(out, tc.Verdict)
	}
	return out
}
