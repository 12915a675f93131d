package symexec

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/vm"
	"github.com/stretchr/testify/assert"
)

// TestSetupContractDeploysAndRunsSetup ensures setup deploys the contract with resolved bytecode and runs its
// setup function against the deployed state.
func TestSetupContractDeploysAndRunsSetup(t *testing.T) {
	interp := &fakeInterpreter{}
	e, registry := newTestEngine(t, interp, &fakeSolver{})
	ctx := newTestContractContext(e, registry, newVaultContract(t))

	deployed := newFakeState(0x01)
	afterSetup := newFakeState(0x02)
	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		if message.Scheme == vm.SchemeCreate {
			assert.EqualValues(t, TestContractAddress, message.Target)
			assert.EqualValues(t, "0x6080aa", message.CreationHexcode)
			return []vm.State{deployed}, nil
		}
		assert.EqualValues(t, "setUp()", message.Function.Sig)
		assert.Same(t, deployed, state)
		return []vm.State{afterSetup}, nil
	}

	state, err := e.setupContract(ctx)
	assert.NoError(t, err)
	assert.Same(t, afterSetup, state)
}

// TestSetupRejectsBranchingConstructor ensures a constructor producing more than one state fails the contract
// outright, with no attempt to disambiguate by solving.
func TestSetupRejectsBranchingConstructor(t *testing.T) {
	interp := &fakeInterpreter{}
	solver := &fakeSolver{}
	e, registry := newTestEngine(t, interp, solver)
	ctx := newTestContractContext(e, registry, newVaultContract(t))

	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		assert.EqualValues(t, vm.SchemeCreate, message.Scheme)
		return []vm.State{newFakeState(0x01), newFakeState(0x02)}, nil
	}

	_, err := e.setupContract(ctx)
	assert.ErrorContains(t, err, "constructor produced 2 paths")
	assert.EqualValues(t, 0, solver.callCount())

	// A reverting constructor is equally fatal.
	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		reverted := newFakeState(0x01)
		reverted.context = revertedContext(nil)
		return []vm.State{reverted}, nil
	}
	_, err = e.setupContract(ctx)
	assert.ErrorContains(t, err, "constructor reverted")
}

// TestSetupDisambiguatesBranchingPaths ensures a branching setup is resolved to its single feasible path, and
// genuinely ambiguous setups are refused.
func TestSetupDisambiguatesBranchingPaths(t *testing.T) {
	interp := &fakeInterpreter{}
	solver := &fakeSolver{
		solve: func(query solving.Query) solving.Output {
			// Only the second branch is feasible.
			if query.SMTLib == "branch-a" {
				return solving.Output{Result: solving.ResultUnsat}
			}
			return solving.Output{Result: solving.ResultSat}
		},
	}
	e, registry := newTestEngine(t, interp, solver)
	ctx := newTestContractContext(e, registry, newVaultContract(t))

	branchA := newFakeState(0x10)
	branchA.path.smt = "branch-a"
	branchB := newFakeState(0x11)
	branchB.path.smt = "branch-b"
	reverted := newFakeState(0x12)
	reverted.context = revertedContext(nil)

	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		if message.Scheme == vm.SchemeCreate {
			return []vm.State{newFakeState(0x01)}, nil
		}
		return []vm.State{reverted, branchA, branchB}, nil
	}

	state, err := e.setupContract(ctx)
	assert.NoError(t, err)
	assert.Same(t, branchB, state)

	// When both branches are feasible, setup must fail rather than guess.
	solver.solve = func(query solving.Query) solving.Output {
		return solving.Output{Result: solving.ResultSat}
	}
	_, err = e.setupContract(ctx)
	assert.ErrorContains(t, err, "multiple paths")
}

// TestSetupFailsWithoutSuccessfulPath ensures a setup whose every path reverted is an error.
func TestSetupFailsWithoutSuccessfulPath(t *testing.T) {
	interp := &fakeInterpreter{}
	e, registry := newTestEngine(t, interp, &fakeSolver{})
	ctx := newTestContractContext(e, registry, newVaultContract(t))

	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		if message.Scheme == vm.SchemeCreate {
			return []vm.State{newFakeState(0x01)}, nil
		}
		reverted := newFakeState(0x10)
		reverted.context = revertedContext(message.Function)
		return []vm.State{reverted}, nil
	}

	_, err := e.setupContract(ctx)
	assert.ErrorContains(t, err, "no successful path")
}

// TestRunContractSeedsVisitedWithSetupState ensures the setup state's fingerprint enters the visited set, so a
// state-preserving transaction never re-admits the setup state into a deeper frontier.
func TestRunContractSeedsVisitedWithSetupState(t *testing.T) {
	interp := &fakeInterpreter{}
	e, registry := newTestEngine(t, interp, &fakeSolver{})
	ctx := newTestContractContext(e, registry, newVaultContract(t))
	registry.Register(newVaultTargetContract(t))

	afterSetup := newFakeState(0x01)
	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		if message.Scheme == vm.SchemeCreate {
			return []vm.State{newFakeState(0x05)}, nil
		}
		return []vm.State{afterSetup}, nil
	}

	results := e.runContract(ctx, nil)
	assert.Empty(t, results)
	assert.EqualValues(t, 1, afterSetup.pathSliced)
	_, seeded := ctx.visited[afterSetup.fingerprint]
	assert.True(t, seeded)

	// A no-op target call whose successor hashes like the setup state is discarded; a genuinely new state is
	// admitted.
	interp.runMessage = func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
		fingerprintByte := byte(0x01)
		if message.Function.Sig == "withdraw(uint256)" {
			fingerprintByte = 0x30
		}
		post := newFakeState(fingerprintByte)
		post.context = &vm.CallContext{Message: message}
		return []vm.State{post}, nil
	}
	admitted := drainFrontier(ctx.Frontier(1))
	assert.Len(t, admitted, 1)
	assert.EqualValues(t, byte(0x30), admitted[0].(*fakeState).fingerprint[0])
}

// TestRunContractSetupFailureFailsAllTests ensures a failed setup classifies every test of the contract as an
// exception without running any of them.
func TestRunContractSetupFailureFailsAllTests(t *testing.T) {
	interp := &fakeInterpreter{
		newExec: func(params vm.ExecParams) (vm.State, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	e, registry := newTestEngine(t, interp, &fakeSolver{})
	harness := newVaultContract(t)
	ctx := newTestContractContext(e, registry, harness)

	testFuncs := harness.TestFunctions(e.config.Symexec.TestPrefixes)
	assert.NotEmpty(t, testFuncs)

	results := e.runContract(ctx, testFuncs)
	assert.Len(t, results, len(testFuncs))
	for _, result := range results {
		assert.EqualValues(t, ExitCodeException, result.ExitCode)
	}
}
