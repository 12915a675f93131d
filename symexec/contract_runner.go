package symexec

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/vm"
)

// runContract analyzes one test contract: it deploys the contract, runs its setup function, seeds the frontier
// with the resulting state, and runs every matched test function to a verdict. A setup failure fails the whole
// contract; no tests are run.
func (e *Engine) runContract(ctx *ContractContext, testFuncs []contracts.FunctionInfo) []TestResult {
	setupState, err := e.setupContract(ctx)
	if err != nil {
		ctx.logger.Error(fmt.Sprintf("Failed to set up %v", ctx.contract.Name()), err)
		results := make([]TestResult, 0, len(testFuncs))
		for _, info := range testFuncs {
			results = append(results, exceptionResult(info.Sig))
		}
		return results
	}

	// The setup state is the sole member of frontier depth zero. Its fingerprint seeds the visited set so a
	// state-preserving transaction can never re-admit the setup state at a deeper frontier.
	setupState.PathSlice()
	if fingerprint, fpErr := ctx.backend.Hasher.Fingerprint(setupState); fpErr == nil {
		ctx.visited[fingerprint] = struct{}{}
	} else {
		ctx.logger.Warn("Failed to fingerprint setup state", fpErr)
	}
	ctx.frontier[0] = &frontierEntry{states: []vm.State{setupState}}

	results := make([]TestResult, 0, len(testFuncs))
	for _, info := range testFuncs {
		results = append(results, e.runTestSafe(ctx, info))
	}
	return results
}

// runTestSafe runs one test function and converts any driver failure, error or panic alike, into an
// exception-classified result so one broken test never aborts the rest of the run.
func (e *Engine) runTestSafe(ctx *ContractContext, info contracts.FunctionInfo) (result TestResult) {
	maxCallDepth := 0
	if strings.HasPrefix(info.Name, ctx.config.InvariantPrefix) {
		maxCallDepth = ctx.config.InvariantDepth
	}
	fctx := newFunctionContext(ctx, info, maxCallDepth)
	defer solving.DefaultRegistry.Deregister(fctx.executor)

	defer func() {
		if r := recover(); r != nil {
			fctx.logger.Error("Encountered a panic while running test", errors.Errorf("%v", r))
			fctx.executor.Shutdown(true)
			result = exceptionResult(info.Sig)
		}
	}()

	e.Events.TestStarting.Publish(TestStartingEvent{Contract: ctx.contract, Function: info})
	result, err := e.runTest(fctx)
	if err != nil {
		fctx.logger.Error("Encountered an error while running test", err)
		fctx.executor.Shutdown(true)
		result = exceptionResult(info.Sig)
	}
	e.Events.TestFinished.Publish(TestFinishedEvent{Contract: ctx.contract, Result: result})
	return result
}

// setupContract deploys the test contract at the fixed test address and runs its setup function, if any,
// returning the single state every test of the contract starts from.
func (e *Engine) setupContract(ctx *ContractContext) (vm.State, error) {
	interp := ctx.backend.Interpreter
	contract := ctx.contract

	session := ctx.backend.NewSession()
	defer session.Release()
	path := interp.NewPath(session)

	ex, err := interp.NewExec(vm.ExecParams{
		TestAddress:  TestContractAddress,
		ContractName: contract.Name(),
		SourcePath:   contract.SourcePath(),
		Path:         path,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create initial execution state")
	}

	resolvedHexcode, err := ex.ResolveLibs(contract.CreationHexcode(), contract.DeployedHexcode())
	if err != nil {
		return nil, errors.WithMessage(err, "failed to resolve library placeholders")
	}

	// Constructor execution must be deterministic: a branching deploy is a structural fault, never something to
	// disambiguate by solving.
	deployStates, err := interp.RunMessage(ex, &vm.Message{
		Target:          TestContractAddress,
		Scheme:          vm.SchemeCreate,
		CreationHexcode: resolvedHexcode,
	}, path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to execute constructor")
	}
	if len(deployStates) != 1 {
		return nil, errors.Errorf("constructor produced %d paths, expected exactly one", len(deployStates))
	}
	deployed := deployStates[0]
	if callErr := deployed.Context().Output.Err; callErr != nil {
		return nil, errors.WithMessage(callErr, "constructor reverted")
	}

	setupInfo, ok := contract.SetupFunction()
	if !ok {
		return deployed, nil
	}
	ctx.logger.Info("Executing ", colors.Bold, setupInfo.Sig, colors.Reset)

	calldata, dynParams, err := ctx.backend.Calldata.NewCalldata(contract, setupInfo, deployed.NewSymbolID)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to generate setup calldata")
	}
	deployed.Path().ProcessDynParams(dynParams)

	return e.runSinglePath(ctx, deployed, &vm.Message{
		Target:   TestContractAddress,
		Data:     calldata,
		Scheme:   vm.SchemeCall,
		Function: &setupInfo,
	}, deployed.Path(), setupInfo.Sig)
}

// runSinglePath executes one message which must conclude in exactly one successful state. When several successful
// paths exist, infeasible ones are eliminated by a synchronous solver check; more than one feasible path is an
// error, as is none.
func (e *Engine) runSinglePath(ctx *ContractContext, pre vm.State, message *vm.Message, path vm.Path, label string) (vm.State, error) {
	states, err := ctx.backend.Interpreter.RunMessage(pre, message, path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to execute %v", label)
	}

	// Serialize each successful path's constraints now, while its solver scope is still intact.
	type candidate struct {
		state vm.State
		query string
	}
	var candidates []candidate
	for _, state := range states {
		if callErr := state.Context().Output.Err; callErr != nil {
			ctx.logger.Warn(fmt.Sprintf("Path reverted during %v", label), callErr)
			continue
		}
		query, serErr := state.Path().ToSMT2()
		if serErr != nil {
			return nil, errors.WithMessagef(serErr, "failed to serialize %v path constraints", label)
		}
		candidates = append(candidates, candidate{state: state, query: query})
	}

	if len(candidates) == 0 {
		return nil, errors.Errorf("no successful path found in %v", label)
	}
	if len(candidates) > 1 {
		// Retain feasible paths only, stopping as soon as ambiguity is certain.
		var feasible []candidate
		for _, c := range candidates {
			output := ctx.backend.Solver.Solve(solving.Query{SMTLib: c.query, TimeoutMillis: ctx.config.SolverTimeout})
			if output.Err != nil {
				return nil, errors.WithMessagef(output.Err, "failed to check %v path feasibility", label)
			}
			if output.Result != solving.ResultUnsat {
				feasible = append(feasible, c)
				if len(feasible) > 1 {
					return nil, errors.Errorf("multiple paths were found in %v", label)
				}
			}
		}
		if len(feasible) == 0 {
			return nil, errors.Errorf("no feasible path found in %v", label)
		}
		candidates = feasible
	}
	return candidates[0].state, nil
}
