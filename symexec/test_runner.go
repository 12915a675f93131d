package symexec

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/vm"
)

// progressLogInterval is how often the driver reports solver progress while draining outstanding queries.
const progressLogInterval = 3 * time.Second

// stuckInfo describes one feasible stuck path encountered while running a test.
type stuckInfo struct {
	pathID int
	reason string
}

// testProgress accumulates the per-path tallies of one test run across frontier states.
type testProgress struct {
	stuck     []stuckInfo
	pathCount int
	potential int
	normal    int
}

// runTest runs one test function to a verdict: it explores every execution path of the test across the configured
// frontier depths, submits every potentially failing path to the test's solver pool, synchronously checks the
// feasibility of stuck paths, and classifies the collected results once the pool has drained. A returned error
// means the driver itself failed and the test must be classified as an exception by the caller.
func (e *Engine) runTest(fctx *FunctionContext) (TestResult, error) {
	ctx := fctx.contractContext
	startTime := time.Now()

	// The test calldata is built once; its symbols are shared by every explored pre-state.
	testSymbolCounter := 0
	calldata, dynParams, err := ctx.backend.Calldata.NewCalldata(ctx.contract, fctx.info, func() int {
		testSymbolCounter++
		return testSymbolCounter - 1
	})
	if err != nil {
		return TestResult{}, errors.WithMessage(err, "failed to generate test calldata")
	}
	message := &vm.Message{
		Target:   TestContractAddress,
		Data:     calldata,
		Scheme:   vm.SchemeCall,
		Function: &fctx.info,
	}

	var progress testProgress

exploration:
	for depth := 0; depth <= fctx.maxCallDepth; depth++ {
		frontier := ctx.Frontier(depth)
		for {
			// An early-exit shutdown stops exploration before the next state is pulled.
			if fctx.executor.IsShutdown() {
				break exploration
			}
			pre, ok := frontier.Next()
			if !ok {
				if err := frontier.Err(); err != nil {
					return TestResult{}, err
				}
				break
			}

			stop, err := fctx.explorePreState(pre, message, dynParams, &progress)
			if err != nil {
				return TestResult{}, err
			}
			if stop {
				break exploration
			}
		}
	}
	pathsTime := time.Now()

	// Wait for outstanding queries, reporting progress while they drain, then shut the pool down. The final drain
	// always happens so no callback is left running when results are classified.
	fctx.awaitFutures(fctx.futures())
	fctx.executor.Shutdown(true)
	endTime := time.Now()

	result := fctx.buildResult(pathCounts{
		total:  progress.pathCount,
		normal: progress.normal,
		stuck:  len(progress.stuck),
	}, timingOf(startTime, pathsTime, endTime))

	fctx.logVerdict(result, progress.potential, progress.stuck)
	return result, nil
}

// explorePreState runs the test message against one frontier state and classifies every resulting path: potential
// violations are submitted to the solver pool, stuck paths are feasibility-checked synchronously, and normal paths
// are tallied. The solver session acquired here scopes this execution's scratch resources and is released before
// returning, whatever the outcome. Returns true when exploration must stop.
func (f *FunctionContext) explorePreState(pre vm.State, message *vm.Message, dynParams []vm.DynParam, progress *testProgress) (bool, error) {
	ctx := f.contractContext
	cfg := ctx.config
	interp := ctx.backend.Interpreter

	session := ctx.backend.NewSession()
	defer session.Release()

	path := interp.NewPath(session)
	path.Extend(pre.Path())
	path.ProcessDynParams(dynParams)
	states, err := interp.RunMessage(pre, message, path)
	if err != nil {
		return false, err
	}

	for _, ex := range states {
		if f.executor.IsShutdown() {
			return true, nil
		}
		pathID := progress.pathCount
		progress.pathCount++

		callContext := ex.Context()
		panicFound := ex.IsPanicOf(cfg.PanicErrorCodes)
		failFound := callContext.FailSet()

		switch {
		case panicFound || failFound:
			progress.potential++
			if err := f.submitPath(ex, pathID); err != nil {
				if errors.Is(err, solving.ErrShutdown) {
					return true, nil
				}
				return false, err
			}
		case callContext.IsStuck():
			feasible, err := f.checkStuckPath(ex)
			if err != nil {
				return false, err
			}
			if feasible {
				progress.stuck = append(progress.stuck, stuckInfo{pathID: pathID, reason: callContext.StuckReason})
			}
		case callContext.Output.Err == nil:
			progress.normal++
		}

		if cfg.Width > 0 && progress.pathCount >= cfg.Width {
			f.logger.Warn(colors.YellowBold, "Incomplete execution", colors.Reset,
				fmt.Sprintf(": path limit of %d reached", cfg.Width))
			return true, nil
		}
	}
	return false, nil
}

// submitPath serializes the potentially failing path's constraints and submits them to the test's solver pool.
// The callback registered on the returned future carries only plain value data captured here; no symbolic state
// crosses into solver workers.
func (f *FunctionContext) submitPath(ex vm.State, pathID int) error {
	smtQuery, err := ex.Path().ToSMT2()
	if err != nil {
		return errors.WithMessage(err, "failed to serialize path constraints")
	}
	sequence := f.contractContext.backend.Renderer.RenderCallSequence(ex.CallSequence())
	trace := f.contractContext.backend.Renderer.RenderTrace(ex.Context())

	solver := f.contractContext.backend.Solver
	query := solving.Query{SMTLib: smtQuery, TimeoutMillis: f.contractContext.config.SolverTimeout}
	future, err := f.executor.Submit(func() solving.Output {
		output := solver.Solve(query)
		output.PathID = pathID
		return output
	})
	if err != nil {
		return err
	}
	future.AddDoneCallback(f.makeSolveCallback(pathID, sequence, trace))

	f.resultsLock.Lock()
	f.pendingFutures = append(f.pendingFutures, future)
	f.resultsLock.Unlock()
	return nil
}

// makeSolveCallback builds the completion callback for one submitted path. It runs on a solver worker goroutine
// and touches only the captured plain values and the lock-guarded result fields.
func (f *FunctionContext) makeSolveCallback(pathID int, sequence string, trace string) func(*solving.Future) {
	return func(future *solving.Future) {
		// A cancelled handle or a pool already shut down means the run no longer wants this result.
		if future.Cancelled() || f.executor.IsShutdown() {
			return
		}
		output := future.Wait()
		if output.Err != nil {
			f.logger.Error("Encountered an error solving path constraints", output.Err)
			return
		}

		f.recordOutput(output)
		if output.Result != solving.ResultSat {
			return
		}

		if output.Model == nil {
			f.logger.Warn(colors.YellowBold, "Counterexample: ", colors.Reset, "unknown")
			return
		}
		f.recordCounterexample(*output.Model)
		if output.Model.Valid {
			f.logger.Info(colors.RedBold, "Counterexample", colors.Reset, fmt.Sprintf(" (path %d):\n%v", pathID, output.Model))
			if f.contractContext.config.EarlyExit {
				f.executor.Shutdown(false)
			}
		} else {
			f.logger.Warn(colors.YellowBold, "Counterexample (potentially invalid)", colors.Reset,
				fmt.Sprintf(" (path %d):\n%v", pathID, output.Model))
		}
		if sequence != "" {
			f.logger.Info("Sequence:\n", sequence)
		}
		if trace != "" {
			f.logger.Debug("Trace:\n", trace)
		}
	}
}

// checkStuckPath synchronously checks whether a stuck path's constraints are satisfiable. Stuck paths are solved
// on the exploration goroutine, never through the pool, so the verdict can account for them deterministically.
func (f *FunctionContext) checkStuckPath(ex vm.State) (bool, error) {
	smtQuery, err := ex.Path().ToSMT2()
	if err != nil {
		return false, errors.WithMessage(err, "failed to serialize stuck path constraints")
	}
	output := f.contractContext.backend.Solver.Solve(solving.Query{SMTLib: smtQuery, TimeoutMillis: f.contractContext.config.SolverTimeout})
	if output.Err != nil {
		return false, errors.WithMessage(output.Err, "failed to check stuck path feasibility")
	}
	return output.Result != solving.ResultUnsat, nil
}

// futures returns a snapshot of the futures submitted so far.
func (f *FunctionContext) futures() []*solving.Future {
	f.resultsLock.Lock()
	defer f.resultsLock.Unlock()
	futures := make([]*solving.Future, len(f.pendingFutures))
	copy(futures, f.pendingFutures)
	return futures
}

// awaitFutures blocks until every submitted future has completed, periodically reporting progress.
func (f *FunctionContext) awaitFutures(futures []*solving.Future) {
	lastLog := time.Now()
	for {
		done := 0
		for _, future := range futures {
			if future.Done() {
				done++
			}
		}
		if done == len(futures) {
			return
		}
		if time.Since(lastLog) >= progressLogInterval {
			f.logger.Info(fmt.Sprintf("Solving queries: %d/%d done", done, len(futures)))
			lastLog = time.Now()
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// logVerdict prints the test's one-line verdict the way users read it.
func (f *FunctionContext) logVerdict(result TestResult, potential int, stuck []stuckInfo) {
	suffix := fmt.Sprintf(" %s (paths: %d, potential: %d, time: %ss)",
		f.info.Sig, result.Paths.Total, potential, result.Timing.TotalSeconds)
	switch result.ExitCode {
	case ExitCodePass:
		f.logger.Info(colors.GreenBold, "[PASS]", colors.Reset, suffix)
	case ExitCodeCounterexample:
		f.logger.Info(colors.RedBold, "[FAIL]", colors.Reset, suffix)
	case ExitCodeTimeout:
		f.logger.Warn(colors.YellowBold, "[TIMEOUT]", colors.Reset, suffix)
	case ExitCodeStuck:
		f.logger.Warn(colors.YellowBold, "[STUCK]", colors.Reset, suffix)
		for _, s := range stuck {
			f.logger.Warn(fmt.Sprintf("Stuck path %d: %s", s.pathID, s.reason))
		}
	case ExitCodeRevertAll:
		f.logger.Warn(colors.YellowBold, "[REVERT_ALL]", colors.Reset, suffix,
			": all paths reverted; the setup state or inputs may be over-constrained")
	default:
		f.logger.Error(colors.RedBold, "[EXCEPTION]", colors.Reset, suffix)
	}
}
