package symexec

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/shopspring/decimal"
)

// Verdict exit codes of a single test, in classification priority order: a counterexample outranks a timeout,
// a timeout outranks a stuck path, and a test whose every path reverted cannot pass.
const (
	// ExitCodePass indicates the test concluded without any counterexample, timeout, or error.
	ExitCodePass = 0

	// ExitCodeCounterexample indicates at least one satisfiable query produced a counterexample.
	ExitCodeCounterexample = 1

	// ExitCodeTimeout indicates at least one solver query returned an unknown result and no counterexample was
	// found.
	ExitCodeTimeout = 2

	// ExitCodeStuck indicates at least one feasible execution path got stuck in the interpreter.
	ExitCodeStuck = 3

	// ExitCodeRevertAll indicates every explored path reverted, so the test exercised nothing.
	ExitCodeRevertAll = 4

	// ExitCodeException indicates the test driver itself failed before producing a verdict.
	ExitCodeException = 5
)

// pathCounts tallies the explored paths of one test run.
type pathCounts struct {
	total  int
	normal int
	stuck  int
}

// PathProfile describes how many paths a test explored and how they terminated.
type PathProfile struct {
	// Total is the number of execution paths explored.
	Total int `json:"total"`

	// Normal is the number of paths which terminated normally without violating an assertion.
	Normal int `json:"normal"`

	// Stuck is the number of feasible paths the interpreter could not classify.
	Stuck int `json:"stuck"`
}

// Timing describes where one test's wall-clock time went, in seconds.
type Timing struct {
	// TotalSeconds is the test's total wall-clock time.
	TotalSeconds decimal.Decimal `json:"total"`

	// PathsSeconds is the time spent exploring execution paths.
	PathsSeconds decimal.Decimal `json:"paths"`

	// SolvingSeconds is the time spent draining outstanding solver queries after exploration finished.
	SolvingSeconds decimal.Decimal `json:"solving"`
}

// timingOf derives a Timing from the run's three phase boundaries.
func timingOf(start time.Time, pathsDone time.Time, end time.Time) Timing {
	return Timing{
		TotalSeconds:   roundedSeconds(end.Sub(start)),
		PathsSeconds:   roundedSeconds(pathsDone.Sub(start)),
		SolvingSeconds: roundedSeconds(end.Sub(pathsDone)),
	}
}

// roundedSeconds renders a duration as seconds with centisecond precision.
func roundedSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromFloat(d.Seconds()).Round(2)
}

// TestResult is the final verdict of one test function.
type TestResult struct {
	// Name is the test function's canonical signature.
	Name string `json:"name"`

	// ExitCode classifies the verdict.
	ExitCode int `json:"exitcode"`

	// Counterexamples are the models found for this test, valid and potentially invalid alike.
	Counterexamples []solving.Model `json:"counterexamples,omitempty"`

	// UnsatCore is the merged unsatisfiability core of the refuted queries, when core extraction was enabled.
	UnsatCore []string `json:"unsatCore,omitempty"`

	// Paths profiles the explored execution paths.
	Paths PathProfile `json:"paths"`

	// Timing profiles where the test's time went.
	Timing Timing `json:"timing"`
}

// Passed indicates whether the test concluded with a passing verdict.
func (r TestResult) Passed() bool {
	return r.ExitCode == ExitCodePass
}

// buildResult classifies the collected solver outputs into the test's final verdict.
func (f *FunctionContext) buildResult(counts pathCounts, timing Timing) TestResult {
	f.resultsLock.Lock()
	defer f.resultsLock.Unlock()

	numSat := 0
	numUnknown := 0
	for _, output := range f.solverOutputs {
		switch output.Result {
		case solving.ResultSat:
			numSat++
		case solving.ResultUnknown:
			numUnknown++
		}
	}

	exitCode := ExitCodePass
	switch {
	case numSat > 0:
		exitCode = ExitCodeCounterexample
	case numUnknown > 0:
		exitCode = ExitCodeTimeout
	case counts.stuck > 0:
		exitCode = ExitCodeStuck
	case counts.normal == 0:
		exitCode = ExitCodeRevertAll
	}

	counterexamples := make([]solving.Model, 0, len(f.validCounterexamples)+len(f.invalidCounterexamples))
	counterexamples = append(counterexamples, f.validCounterexamples...)
	counterexamples = append(counterexamples, f.invalidCounterexamples...)

	return TestResult{
		Name:            f.info.Sig,
		ExitCode:        exitCode,
		Counterexamples: counterexamples,
		UnsatCore:       f.unsatCore,
		Paths: PathProfile{
			Total:  counts.total,
			Normal: counts.normal,
			Stuck:  counts.stuck,
		},
		Timing: timing,
	}
}

// exceptionResult builds the verdict of a test whose driver failed before classification.
func exceptionResult(name string) TestResult {
	return TestResult{
		Name:     name,
		ExitCode: ExitCodeException,
	}
}

// ProjectResult aggregates every test verdict of a run across all analyzed contracts.
type ProjectResult struct {
	// TestResults maps each analyzed contract's name to its test verdicts.
	TestResults map[string][]TestResult `json:"testResults"`
}

// FailedCount returns the number of tests which did not pass.
func (p *ProjectResult) FailedCount() int {
	failed := 0
	for _, results := range p.TestResults {
		for _, result := range results {
			if !result.Passed() {
				failed++
			}
		}
	}
	return failed
}

// TestCount returns the total number of tests run.
func (p *ProjectResult) TestCount() int {
	count := 0
	for _, results := range p.TestResults {
		count += len(results)
	}
	return count
}

// WriteReport writes the project result as JSON to the provided path.
func (p *ProjectResult) WriteReport(path string) error {
	encoded, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithMessage(err, "failed to encode test results")
	}
	if err = os.WriteFile(path, encoded, 0644); err != nil {
		return errors.WithMessage(err, "failed to write test results")
	}
	return nil
}
