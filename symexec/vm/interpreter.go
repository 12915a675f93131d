package vm

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
)

// ExecParams describes the inputs to Interpreter.NewExec: the initial execution environment for deploying a test
// contract.
type ExecParams struct {
	// TestAddress is the address at which the test harness contract is deployed.
	TestAddress common.Address

	// ContractName identifies the test contract being deployed.
	ContractName string

	// SourcePath is the source file of the test contract.
	SourcePath string

	// Path is the fresh path the execution starts with.
	Path Path
}

// Interpreter describes the external virtual-machine collaborator which executes one transaction symbolically and
// produces all resulting states and call traces. The engine drives it strictly from a single goroutine.
type Interpreter interface {
	// Builder returns the collaborator's symbolic expression builder.
	Builder() ExprBuilder

	// NewPath creates a fresh, empty path bound to the provided solver session.
	NewPath(session *solving.Session) Path

	// NewExec creates an initial execution state for deploying a test contract.
	NewExec(params ExecParams) (State, error)

	// RunMessage executes the provided message against the provided predecessor state, using the provided path as
	// the execution's constraint accumulator, and returns every resulting state.
	RunMessage(state State, message *Message, path Path) ([]State, error)
}

// CalldataFactory generates fresh symbolic calldata for ABI functions. It is owned by the symbolic calldata/ABI
// generation collaborator.
type CalldataFactory interface {
	// NewCalldata builds symbolic calldata for the provided function of the provided contract. Fresh symbols are
	// named using newSymbolID so that solver models remain traceable. Returns the calldata expression and the
	// dynamic parameter bounds chosen.
	NewCalldata(contract *contracts.Contract, function contracts.FunctionInfo, newSymbolID func() int) (Expr, []DynParam, error)
}

// TraceRenderer renders call traces and call sequences for reporting. Rendering is peripheral; a NopTraceRenderer
// may be used when no rendering is desired.
type TraceRenderer interface {
	// RenderTrace renders the provided call context's trace as text.
	RenderTrace(callContext *CallContext) string

	// RenderCallSequence renders the ordered call sequence as text.
	RenderCallSequence(sequence []*CallContext) string
}

// NopTraceRenderer is a TraceRenderer that renders nothing.
type NopTraceRenderer struct{}

// RenderTrace implements TraceRenderer and returns an empty string.
func (NopTraceRenderer) RenderTrace(callContext *CallContext) string {
	return ""
}

// RenderCallSequence implements TraceRenderer and returns an empty string.
func (NopTraceRenderer) RenderCallSequence(sequence []*CallContext) string {
	return ""
}
