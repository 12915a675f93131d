package symexec

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/logging"
	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec/config"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/store"
	"github.com/scrylabs/solvent/utils"
	"golang.org/x/net/context"
)

// Engine orchestrates symbolic test runs: for each matched test contract it deploys and sets the contract up,
// explores execution paths through a shared frontier, and discharges potentially failing paths through a
// concurrent solver pool.
type Engine struct {
	// config describes the project configuration the engine was created with.
	config *config.ProjectConfig

	// registry resolves compiled contracts and their ABIs.
	registry *contracts.Registry

	// backend provides the external collaborators driven during a run.
	backend *Backend

	// logger is the engine's log instance, used for all run output.
	logger *logging.Logger

	// Events describes the engine's lifecycle event emitters.
	Events EngineEvents
}

// NewEngine creates an Engine with the provided configuration, contract registry and collaborator backend.
// Returns an error if the configuration or backend is invalid, or the solver does not meet the configured
// minimum version.
func NewEngine(projectConfig *config.ProjectConfig, registry *contracts.Registry, backend *Backend) (*Engine, error) {
	if err := projectConfig.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid configuration")
	}
	if registry == nil {
		return nil, errors.New("no contract registry provided")
	}
	if backend == nil {
		return nil, errors.New("no backend provided")
	}
	if err := backend.Validate(); err != nil {
		return nil, err
	}

	// Refuse solvers older than the configured minimum before any query is issued.
	if minVersion := projectConfig.Symexec.MinSolverVersion; minVersion != "" {
		if err := solving.EnsureMinimumVersion(backend.Solver, minVersion); err != nil {
			return nil, err
		}
	}

	// Update the global logger to the configured level and create our engine-wide sub-logger from it.
	logging.GlobalLogger = logging.NewLogger(projectConfig.Logging.Level, projectConfig.Logging.EnableConsoleLogging)
	logger := logging.GlobalLogger.NewSubLogger("module", "symexec")
	if projectConfig.Logging.LogDirectory != "" {
		file, err := utils.CreateFile(projectConfig.Logging.LogDirectory, "solvent.log")
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create log file")
		}
		logging.GlobalLogger.AddWriter(file, logging.UNSTRUCTURED)
	}

	return &Engine{
		config:   projectConfig,
		registry: registry,
		backend:  backend,
		logger:   logger,
	}, nil
}

// Run analyzes every matched test contract and returns the aggregated project result. The provided context
// cancels the run between contracts; within a test, cancellation is mediated by the solver pool registry.
func (e *Engine) Run(ctx context.Context) (*ProjectResult, error) {
	matchContract, matchTest, err := e.compileMatchers()
	if err != nil {
		return nil, err
	}

	var stateStore *store.StateStore
	if dir := e.config.Symexec.StateStoreDirectory; dir != "" {
		if stateStore, err = store.Open(dir); err != nil {
			return nil, errors.WithMessage(err, "failed to open state store")
		}
		defer stateStore.Close()
	}

	project := &ProjectResult{TestResults: make(map[string][]TestResult)}
	for _, contract := range e.registry.Contracts() {
		if utils.CheckContextDone(ctx) {
			break
		}
		if matchContract != nil && !matchContract.MatchString(contract.Name()) {
			continue
		}
		testFuncs := e.matchedTests(contract, matchTest)
		if len(testFuncs) == 0 {
			continue
		}

		e.logger.Info("Running ", colors.Bold, fmt.Sprintf("%d", len(testFuncs)), colors.Reset,
			" tests for ", colors.Bold, contract.Name(), colors.Reset)
		e.Events.ContractStarting.Publish(ContractStartingEvent{Contract: contract, TestFunctions: testFuncs})

		contractCtx := newContractContext(&e.config.Symexec, e.backend, contract, e.registry, stateStore,
			e.logger.NewSubLogger("contract", contract.Name()))
		results := e.runContract(contractCtx, testFuncs)
		project.TestResults[contract.Name()] = results

		e.Events.ContractFinished.Publish(ContractFinishedEvent{Contract: contract, Results: results})
	}

	passed := project.TestCount() - project.FailedCount()
	e.logger.Info("Symbolic test summary: ", colors.Bold,
		fmt.Sprintf("%d/%d", passed, project.TestCount()), colors.Reset, " tests passed")

	if path := e.config.Symexec.JSONOutputPath; path != "" {
		if err = project.WriteReport(path); err != nil {
			return nil, err
		}
		e.logger.Info("Test results written to: ", colors.Bold, path, colors.Reset)
	}
	return project, nil
}

// compileMatchers compiles the configured contract and test name filters.
func (e *Engine) compileMatchers() (*regexp.Regexp, *regexp.Regexp, error) {
	var matchContract, matchTest *regexp.Regexp
	var err error
	if pattern := e.config.Symexec.MatchContract; pattern != "" {
		if matchContract, err = regexp.Compile(pattern); err != nil {
			return nil, nil, errors.WithMessage(err, "invalid contract filter")
		}
	}
	if pattern := e.config.Symexec.MatchTest; pattern != "" {
		if matchTest, err = regexp.Compile(pattern); err != nil {
			return nil, nil, errors.WithMessage(err, "invalid test filter")
		}
	}
	return matchContract, matchTest, nil
}

// matchedTests returns the contract's test functions which pass the test name filter.
func (e *Engine) matchedTests(contract *contracts.Contract, matchTest *regexp.Regexp) []contracts.FunctionInfo {
	testFuncs := contract.TestFunctions(e.config.Symexec.TestPrefixes)
	if matchTest == nil {
		return testFuncs
	}
	return utils.SliceWhere(testFuncs, func(info contracts.FunctionInfo) bool {
		return matchTest.MatchString(info.Sig)
	})
}
