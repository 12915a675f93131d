package vm

import (
	"encoding/hex"

	"github.com/crytic/medusa-geth/common"
	"github.com/holiman/uint256"
)

// Fingerprint is the canonical identity hash of an execution state, used for structural deduplication. It is an
// opaque fixed-size byte string produced by a StateHasher.
type Fingerprint [32]byte

// Hex returns the hex encoding of the fingerprint.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// ContractCode describes the code deployed at an address within an execution state, along with the metadata needed
// to resolve the contract's ABI.
type ContractCode struct {
	// ContractName is the name of the contract this code was compiled from, if known.
	ContractName string

	// SourcePath is the path of the source file the contract was compiled from, if known.
	SourcePath string
}

// State describes an opaque, interpreter-produced symbolic machine state after a sequence of transactions. A State
// is owned exclusively by the exploration goroutine once retrieved; solver workers never touch it. Only the
// accessors below are consumed by the engine.
type State interface {
	// CodeAddresses returns the addresses with code deployed in this state, in deterministic order.
	CodeAddresses() []common.Address

	// CodeAt returns the code metadata deployed at the provided address, and whether any exists.
	CodeAt(addr common.Address) (*ContractCode, bool)

	// Context returns the call context of the last executed transaction, including its output and subcall tree.
	Context() *CallContext

	// Path returns the state's accumulated path constraints.
	Path() Path

	// Block returns the state's block context. The returned struct may be mutated by the engine to install a fresh
	// symbolic timestamp during frontier expansion.
	Block() *Block

	// CallSequence returns the ordered transactions which produced this state, beyond the initial setup state.
	CallSequence() []*CallContext

	// SetCallSequence replaces the state's call sequence. The engine sets it to the predecessor's sequence plus the
	// newly executed call context.
	SetCallSequence(sequence []*CallContext)

	// PathSlice folds transient path information into constraints on persistent state, canonicalizing the path for
	// fingerprinting. It must be invoked after a transaction completes and before Fingerprinting the state.
	PathSlice()

	// IsPanicOf indicates whether the state's output is a revert carrying a panic whose code is in the provided
	// set.
	IsPanicOf(codes []uint64) bool

	// PanicCode returns the panic code carried by the state's revert output, if any.
	PanicCode() (*uint256.Int, bool)

	// NewSymbolID returns the next value of the state's symbol counter. Together with a process-wide uniqueness
	// counter it makes engine-introduced symbol names deterministic and traceable to their origin call.
	NewSymbolID() int

	// ResolveLibs resolves library placeholders in the provided creation hexcode by deploying the referenced
	// libraries into this state. Returns the resolved creation hexcode.
	ResolveLibs(creationHexcode string, deployedHexcode string) (string, error)
}

// Path describes the accumulated path constraints of an execution state, owned by the path/constraint collaborator.
// A Path is bound to the solver session it was created with and must stay on the goroutine that created it; only
// its SMT-LIB serialization (ToSMT2) may cross into solver workers.
type Path interface {
	// Extend appends all constraints of the other path onto this one.
	Extend(other Path)

	// ProcessDynParams applies the size bounds of the provided dynamic calldata parameters to the path.
	ProcessDynParams(params []DynParam)

	// Append adds a constraint to the path.
	Append(condition Expr)

	// ToSMT2 serializes the path's accumulated constraints into a plain-data constraint query.
	ToSMT2() (string, error)
}

// StateHasher computes canonical state fingerprints. The exact canonicalization (which persistent-state variables
// and path constraints are folded in) is owned by the collaborator; the engine assumes it is deterministic and
// collision-resistant.
type StateHasher interface {
	// Fingerprint computes the identity fingerprint of the provided state. The state's PathSlice must have been
	// invoked beforehand.
	Fingerprint(state State) (Fingerprint, error)
}
