package symexec

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/logging"
	"github.com/scrylabs/solvent/symexec/config"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/store"
	"github.com/scrylabs/solvent/symexec/vm"
)

// TestContractAddress is the fixed address every test harness contract is deployed at.
var TestContractAddress = common.HexToAddress("0x7FA9385bE102ac3EAc297483Dd6233D62b3e1496")

// uidCounter issues process-wide unique suffixes for engine-introduced symbol names.
var uidCounter atomic.Uint64

// nextUID returns a short process-wide unique identifier used to keep engine-introduced symbol names distinct
// across contracts and tests.
func nextUID() string {
	return strconv.FormatUint(uidCounter.Add(1), 16)
}

// Backend bundles the external collaborators the engine drives: the symbolic interpreter, the constraint solver,
// the state hasher, the calldata generator, and the trace renderer.
type Backend struct {
	// Interpreter executes transactions symbolically and produces resulting states.
	Interpreter vm.Interpreter

	// Solver discharges serialized constraint queries. Solve must be safe to call from multiple goroutines.
	Solver solving.Solver

	// Hasher computes canonical state fingerprints for deduplication.
	Hasher vm.StateHasher

	// Calldata generates fresh symbolic calldata for ABI functions.
	Calldata vm.CalldataFactory

	// Renderer renders call traces and sequences for reporting. Optional; a NopTraceRenderer is substituted when
	// nil.
	Renderer vm.TraceRenderer

	// NewSession creates a scoped solver session. Optional; when nil, sessions without a release hook are created.
	NewSession func() *solving.Session
}

// Validate ensures the backend carries every required collaborator and fills in optional ones.
func (b *Backend) Validate() error {
	if b.Interpreter == nil {
		return errors.New("backend validation failed: no interpreter provided")
	}
	if b.Solver == nil {
		return errors.New("backend validation failed: no solver provided")
	}
	if b.Hasher == nil {
		return errors.New("backend validation failed: no state hasher provided")
	}
	if b.Calldata == nil {
		return errors.New("backend validation failed: no calldata factory provided")
	}
	if b.Renderer == nil {
		b.Renderer = vm.NopTraceRenderer{}
	}
	if b.NewSession == nil {
		b.NewSession = func() *solving.Session {
			return solving.NewSession(nil)
		}
	}
	return nil
}

// ContractContext holds all state shared by the tests of a single contract: the frontier cache, the visited set,
// and the probe registry. It is owned by the exploration goroutine and is never accessed by solver workers.
type ContractContext struct {
	// config describes the engine parameters in use.
	config *config.SymexecConfig

	// backend provides the external collaborators.
	backend *Backend

	// contract is the test contract under analysis.
	contract *contracts.Contract

	// registry resolves contracts deployed during exploration back to their ABIs.
	registry *contracts.Registry

	// logger is the contract-scoped logger.
	logger *logging.Logger

	// frontier memoizes computed frontier states per depth. An entry exists for every depth whose computation has
	// started; its states are appended as they are produced, so a later replay observes the same sequence.
	frontier map[int]*frontierEntry

	// visited tracks the fingerprints of every state admitted into any frontier, deduplicating structurally
	// identical states across depths and tests.
	visited map[vm.Fingerprint]struct{}

	// probesReported tracks the (contract, function) violation sites already reported by frontier probes, so each
	// site is reported at most once per contract run.
	probesReported map[probeSite]struct{}

	// stateStore optionally persists visited fingerprints and probe findings across runs. Nil when disabled.
	stateStore *store.StateStore
}

// probeSite identifies a frontier probe finding by the contract and function it occurred in.
type probeSite struct {
	contractName string
	sig          string
}

// newContractContext creates a ContractContext for the provided contract.
func newContractContext(cfg *config.SymexecConfig, backend *Backend, contract *contracts.Contract, registry *contracts.Registry, stateStore *store.StateStore, logger *logging.Logger) *ContractContext {
	return &ContractContext{
		config:         cfg,
		backend:        backend,
		contract:       contract,
		registry:       registry,
		logger:         logger,
		frontier:       make(map[int]*frontierEntry),
		visited:        make(map[vm.Fingerprint]struct{}),
		probesReported: make(map[probeSite]struct{}),
		stateStore:     stateStore,
	}
}

// FunctionContext holds all state of a single test run: the solver work pool, the outputs collected from its
// workers, and the counterexamples found. Worker callbacks and the exploration goroutine both append results, so
// all result fields are guarded by resultsLock.
type FunctionContext struct {
	// contractContext is the enclosing contract's shared exploration state.
	contractContext *ContractContext

	// info identifies the test function being run.
	info contracts.FunctionInfo

	// maxCallDepth is the number of frontier expansions performed before running the test. Zero for plain tests;
	// the configured invariant depth for invariant tests.
	maxCallDepth int

	// executor is the bounded solver work pool dedicated to this test.
	executor *solving.Executor

	// logger is the test-scoped logger.
	logger *logging.Logger

	// resultsLock guards the result fields below.
	resultsLock sync.Mutex

	// solverOutputs collects the outputs of every completed solver task.
	solverOutputs []solving.Output

	// validCounterexamples collects models the solver validated as genuine counterexamples.
	validCounterexamples []solving.Model

	// invalidCounterexamples collects models the solver flagged as potentially invalid.
	invalidCounterexamples []solving.Model

	// unsatCore accumulates the merged unsatisfiability cores of refuted queries.
	unsatCore []string

	// pendingFutures are the handles of every solver query submitted by this test run.
	pendingFutures []*solving.Future
}

// newFunctionContext creates a FunctionContext for one run of the provided test function.
func newFunctionContext(contractContext *ContractContext, info contracts.FunctionInfo, maxCallDepth int) *FunctionContext {
	executor := solving.NewExecutor(contractContext.config.SolverWorkers)
	solving.DefaultRegistry.Register(executor)
	return &FunctionContext{
		contractContext: contractContext,
		info:            info,
		maxCallDepth:    maxCallDepth,
		executor:        executor,
		logger:          contractContext.logger.NewSubLogger("test", info.Sig),
	}
}

// recordOutput appends one completed solver output, merging any unsat core it carries.
func (f *FunctionContext) recordOutput(output solving.Output) {
	f.resultsLock.Lock()
	defer f.resultsLock.Unlock()
	f.solverOutputs = append(f.solverOutputs, output)
	if output.Result == solving.ResultUnsat && len(output.UnsatCore) > 0 {
		f.unsatCore = append(f.unsatCore, output.UnsatCore...)
	}
}

// recordCounterexample appends one discovered counterexample model.
func (f *FunctionContext) recordCounterexample(model solving.Model) {
	f.resultsLock.Lock()
	defer f.resultsLock.Unlock()
	if model.Valid {
		f.validCounterexamples = append(f.validCounterexamples, model)
	} else {
		f.invalidCounterexamples = append(f.invalidCounterexamples, model)
	}
}

// snapshotOutputs returns a copy of the collected solver outputs.
func (f *FunctionContext) snapshotOutputs() []solving.Output {
	f.resultsLock.Lock()
	defer f.resultsLock.Unlock()
	outputs := make([]solving.Output, len(f.solverOutputs))
	copy(outputs, f.solverOutputs)
	return outputs
}
