package vm

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/scrylabs/solvent/symexec/contracts"
)

// CallScheme describes the kind of call a Message performs.
type CallScheme int

const (
	// SchemeCall is a regular message call to a deployed contract.
	SchemeCall CallScheme = iota
	// SchemeCreate is a contract creation call.
	SchemeCreate
)

// Message describes one transaction-level call to be executed symbolically: the target contract, the (possibly
// symbolic) sender, origin and value, and the (possibly symbolic) calldata.
type Message struct {
	// Target is the address of the contract being called or created.
	Target common.Address

	// Sender is the msg.sender of the call. Nil means the interpreter's default concrete caller.
	Sender Expr

	// Origin is the tx.origin of the call. Nil means the interpreter's default concrete origin.
	Origin Expr

	// Value is the call value in wei. Nil means zero.
	Value Expr

	// Data is the calldata of the call. Nil means empty calldata.
	Data Expr

	// Scheme describes whether this is a regular call or a creation.
	Scheme CallScheme

	// CreationHexcode is the hex-encoded creation bytecode to execute when Scheme is SchemeCreate. Library
	// placeholders must have been resolved beforehand.
	CreationHexcode string

	// Function identifies the ABI function this message invokes, when known. It is carried through to resulting
	// states so probe findings can name their violation site.
	Function *contracts.FunctionInfo
}

// CallOutput describes the output of one executed call.
type CallOutput struct {
	// Err is non-nil when the call reverted or otherwise failed.
	Err error

	// ReturnData is the concrete return/revert data of the call, when available.
	ReturnData []byte

	// FailFlag indicates the call set the global fail flag (e.g. via a failure cheatcode) without necessarily
	// reverting.
	FailFlag bool
}

// CallContext describes one call in an execution's call tree: the message that initiated it, its output, and any
// subcalls it performed.
type CallContext struct {
	// Message is the call that created this context.
	Message *Message

	// Output is the call's result.
	Output CallOutput

	// Subcalls are the nested calls performed by this call, in execution order.
	Subcalls []*CallContext

	// StuckReason is non-empty when the interpreter could not classify the call's outcome as a normal success or
	// revert. A stuck call is a potential tool or environment fault, not a finding.
	StuckReason string
}

// IsStuck indicates whether execution of this call got stuck in the interpreter.
func (c *CallContext) IsStuck() bool {
	return c.StuckReason != ""
}

// FailSet indicates whether this call or any call in its subtree set the global fail flag.
func (c *CallContext) FailSet() bool {
	if c.Output.FailFlag {
		return true
	}
	for _, subcall := range c.Subcalls {
		if subcall.FailSet() {
			return true
		}
	}
	return false
}

// Block describes the block context of an execution state. The engine only manipulates the timestamp: each frontier
// expansion introduces a fresh symbolic timestamp constrained to be monotonically non-decreasing along a call
// sequence.
type Block struct {
	// Timestamp is the (symbolic) block timestamp.
	Timestamp Expr
}
