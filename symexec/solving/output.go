package solving

import (
	"fmt"
	"sort"
	"strings"
)

// Result describes the three-valued outcome of deciding a single constraint query.
type Result int

const (
	// ResultUnsat indicates the query's constraints are unsatisfiable: no counterexample exists on this path.
	ResultUnsat Result = iota
	// ResultSat indicates the query's constraints are satisfiable: a counterexample candidate exists.
	ResultSat
	// ResultUnknown indicates the solver could not decide the query, e.g. it timed out or gave up.
	ResultUnknown
)

// String returns the conventional solver spelling of the result.
func (r Result) String() string {
	switch r {
	case ResultUnsat:
		return "unsat"
	case ResultSat:
		return "sat"
	default:
		return "unknown"
	}
}

// Query describes a serialized constraint system for one execution path. It is plain value data: the only
// representation of a path's constraints allowed to cross the boundary into solver worker goroutines.
type Query struct {
	// SMTLib is the SMT-LIB v2 serialization of the path's accumulated constraints.
	SMTLib string

	// TimeoutMillis is the per-query solver timeout in milliseconds. Zero means the solver's own default applies.
	TimeoutMillis int
}

// Model describes a satisfying assignment produced by the solver. All fields are plain value data, safe to share
// across threads.
type Model struct {
	// Assignments maps symbol names to their concrete assigned values.
	Assignments map[string]string `json:"assignments"`

	// Valid indicates whether the concrete values are known to truly satisfy all constraints, as opposed to a
	// possibly-approximate model returned by an incomplete decision procedure.
	Valid bool `json:"valid"`
}

// String returns a compact single-line rendering of the model's assignments, sorted by symbol name.
func (m Model) String() string {
	names := make([]string, 0, len(m.Assignments))
	for name := range m.Assignments {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s = %s", name, m.Assignments[name]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Output describes the outcome of solving one candidate path's query. It contains only plain, independently-owned
// value data so completion callbacks may consume it from any worker goroutine.
type Output struct {
	// PathID identifies the explored path this output belongs to. Path identifiers are assigned in strict
	// discovery order by the exploration thread.
	PathID int `json:"pathId"`

	// Result is the solver's three-valued verdict for the query.
	Result Result `json:"result"`

	// Model is the satisfying assignment for satisfiable queries, or nil when no model could be extracted.
	Model *Model `json:"model,omitempty"`

	// UnsatCore optionally names the constraints forming an unsatisfiable core for unsat queries.
	UnsatCore []string `json:"unsatCore,omitempty"`

	// Err records a failure raised while solving. A solving failure is inconclusive: it is logged but does not by
	// itself affect a test's verdict.
	Err error `json:"-"`
}
