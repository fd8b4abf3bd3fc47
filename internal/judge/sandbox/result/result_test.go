package result

import "testing"

func TestWorstPrecedence(t *testing.T) {
	cases := []struct {
		name string
		in   []Verdict
		want Verdict
	}{
		{"empty", nil, VerdictAccepted},
		{"all accepted", []Verdict{VerdictAccepted, VerdictAccepted}, VerdictAccepted},
		{"wa over ac", []Verdict{VerdictAccepted, VerdictWrongAnswer}, VerdictWrongAnswer},
		{"tle over wa", []Verdict{VerdictWrongAnswer, VerdictTimeLimitExceeded, VerdictAccepted}, VerdictTimeLimitExceeded},
		{"re over tle", []Verdict{VerdictTimeLimitExceeded, VerdictRuntimeError}, VerdictRuntimeError},
		{"infra over re", []Verdict{VerdictRuntimeError, VerdictExecutionInfraError}, VerdictExecutionInfraError},
		{"aborted counts as infra", []Verdict{VerdictRuntimeError, VerdictAborted}, VerdictExecutionInfraError},
		{"ce over everything", []Verdict{VerdictAborted, VerdictCompileError, VerdictRuntimeError}, VerdictCompileError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Worst(tc.in...); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestJudgeResultAttempted(t *testing.T) {
	res := JudgeResult{Tests: []TestcaseResult{
		{Index: 0, Verdict: VerdictAccepted},
		{Index: 1, Verdict: VerdictWrongAnswer},
		{Index: 2, Verdict: VerdictAborted},
	}}
	if got := res.Attempted(); got != 2 {
		t.Fatalf("expected 2 attempted, got %d", got)
	}
	if got := len(res.Verdicts()); got != 3 {
		t.Fatalf("expected 3 verdicts, got %d", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusDone.Terminal() || !StatusAborted.Terminal() {
		t.Fatalf("done and aborted must be terminal")
	}
	if StatusRunning.Terminal() {
		t.Fatalf("running must not be terminal")
	}
}
