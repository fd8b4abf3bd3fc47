// Package verdict decides whether captured output matches the expected answer.
package verdict

import (
	"fmt"
	"strings"
)

// Policy selects how much of the output takes part in comparison.
type Policy string

const (
	// PolicyFull compares every line.
	PolicyFull Policy = "full"
	// PolicyFirstLine compares only the first line of each side.
	PolicyFirstLine Policy = "first_line"
)

// ParsePolicy validates a configured policy name. Empty selects PolicyFull.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.TrimSpace(raw)) {
	case "", PolicyFull:
		return PolicyFull, nil
	case PolicyFirstLine:
		return PolicyFirstLine, nil
	default:
		return "", fmt.Errorf("unknown compare policy %q", raw)
	}
}

// Comparer normalizes and compares outputs under one policy.
type Comparer struct {
	Policy Policy
}

// NewComparer returns a comparer for the given policy.
func NewComparer(policy Policy) *Comparer {
	if policy == "" {
		policy = PolicyFull
	}
	return &Comparer{Policy: policy}
}

// Compare reports whether actual matches expected. On mismatch the
// returned string locates the first differing line.
func (c *Comparer) Compare(expected, actual string) (bool, string) {
	want := normalize(expected)
	got := normalize(actual)
	if c.Policy == PolicyFirstLine {
		want = want[:1]
		got = got[:1]
	}
	n := len(want)
	if len(got) > n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		if i >= len(want) {
			return false, fmt.Sprintf("line %d: unexpected extra output", i+1)
		}
		if i >= len(got) {
			return false, fmt.Sprintf("line %d: output ended early", i+1)
		}
		if want[i] != got[i] {
			return false, fmt.Sprintf("line %d: expected %q, got %q", i+1, clip(want[i]), clip(got[i]))
		}
	}
	return true, ""
}

// normalize unifies line endings, trims trailing whitespace per line and
// drops blank space around the whole output. Always returns at least one line.
func normalize(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	if start == end {
		return []string{""}
	}
	out := lines[start:end]
	out[0] = strings.TrimLeft(out[0], " \t\f\v")
	return out
}

const clipLen = 64

func clip(s string) string {
	if len(s) <= clipLen {
		return s
	}
	return s[:clipLen] + "..."
}
