package symexec

import (
	"github.com/scrylabs/solvent/events"
	"github.com/scrylabs/solvent/symexec/contracts"
)

// EngineEvents describes the event emitters of an Engine, used to hook into the run lifecycle.
type EngineEvents struct {
	// ContractStarting emits when a contract's analysis begins.
	ContractStarting events.EventEmitter[ContractStartingEvent]

	// ContractFinished emits when a contract's analysis concludes, with every test verdict.
	ContractFinished events.EventEmitter[ContractFinishedEvent]

	// TestStarting emits when one test function begins running.
	TestStarting events.EventEmitter[TestStartingEvent]

	// TestFinished emits when one test function concludes with a verdict.
	TestFinished events.EventEmitter[TestFinishedEvent]
}

// ContractStartingEvent describes a contract whose analysis is about to begin.
type ContractStartingEvent struct {
	// Contract is the test contract being analyzed.
	Contract *contracts.Contract

	// TestFunctions are the matched test functions about to run.
	TestFunctions []contracts.FunctionInfo
}

// ContractFinishedEvent describes a contract whose analysis concluded.
type ContractFinishedEvent struct {
	// Contract is the test contract which was analyzed.
	Contract *contracts.Contract

	// Results are the verdicts of every test run.
	Results []TestResult
}

// TestStartingEvent describes a test function about to run.
type TestStartingEvent struct {
	// Contract is the enclosing test contract.
	Contract *contracts.Contract

	// Function is the test function about to run.
	Function contracts.FunctionInfo
}

// TestFinishedEvent describes a test function which concluded.
type TestFinishedEvent struct {
	// Contract is the enclosing test contract.
	Contract *contracts.Contract

	// Result is the test's verdict.
	Result TestResult
}
