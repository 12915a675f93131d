package symexec

import (
	"fmt"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/vm"
)

// targetRun lazily executes every state-mutating external function of one deployed target contract against one
// predecessor state, yielding every resulting post-state. A failure while executing one function is logged and
// skips to the next function; it never aborts the whole run.
type targetRun struct {
	ctx      *ContractContext
	pre      vm.State
	addr     common.Address
	contract *contracts.Contract

	methods     []abi.Method
	methodIndex int
	batch       []vm.State
	batchIndex  int
	err         error
}

// runTargetContract prepares a targetRun for the contract deployed at the provided address within the provided
// predecessor state. The contract's name must resolve through the registry so its ABI is known.
func (c *ContractContext) runTargetContract(pre vm.State, addr common.Address) (*targetRun, error) {
	code, ok := pre.CodeAt(addr)
	if !ok {
		return nil, errors.Errorf("no code found at target address %v", addr)
	}
	if code.ContractName == "" {
		return nil, errors.Errorf("no contract name found for target address %v", addr)
	}
	contract, err := c.registry.Get(code.ContractName, code.SourcePath)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to resolve target contract %v at %v", code.ContractName, addr)
	}
	return &targetRun{
		ctx:      c,
		pre:      pre,
		addr:     addr,
		contract: contract,
		methods:  contract.StateMutatingMethods(),
	}, nil
}

func (t *targetRun) Err() error {
	return t.err
}

// Next returns the next post-state produced by executing the target contract's functions.
func (t *targetRun) Next() (vm.State, bool) {
	for t.batchIndex >= len(t.batch) {
		if t.methodIndex >= len(t.methods) {
			return nil, false
		}
		method := t.methods[t.methodIndex]
		t.methodIndex++

		states, err := t.executeFunction(&method)
		if err != nil {
			// One broken function must not sink the whole frontier expansion.
			t.ctx.logger.Error(fmt.Sprintf("Error executing %v.%v during frontier expansion", t.contract.Name(), method.Sig), err)
			continue
		}
		t.batch = states
		t.batchIndex = 0
	}
	state := t.batch[t.batchIndex]
	t.batchIndex++
	return state, true
}

// executeFunction symbolically executes one external function of the target contract against the predecessor
// state with fresh symbolic calldata, sender, origin and value. A dedicated solver session scopes the execution's
// scratch solver resources; it is released before returning on every path.
func (t *targetRun) executeFunction(method *abi.Method) ([]vm.State, error) {
	ctx := t.ctx
	interp := ctx.backend.Interpreter

	session := ctx.backend.NewSession()
	defer session.Release()

	path := interp.NewPath(session)
	path.Extend(t.pre.Path())

	info := t.contract.FunctionInfo(method)
	calldata, dynParams, err := ctx.backend.Calldata.NewCalldata(t.contract, info, t.pre.NewSymbolID)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to generate symbolic calldata")
	}
	path.ProcessDynParams(dynParams)

	message := &vm.Message{
		Target:   t.addr,
		Sender:   t.freshCallSymbol(interp.Builder(), "msg_sender", 160),
		Origin:   t.freshCallSymbol(interp.Builder(), "tx_origin", 160),
		Value:    t.freshCallSymbol(interp.Builder(), "msg_value", 256),
		Data:     calldata,
		Scheme:   vm.SchemeCall,
		Function: &info,
	}
	return interp.RunMessage(t.pre, message, path)
}

// freshCallSymbol introduces a fresh symbolic bit-vector for one call attribute, named so solver models remain
// traceable to the call that introduced them.
func (t *targetRun) freshCallSymbol(builder vm.ExprBuilder, kind string, bits uint) vm.Expr {
	name := fmt.Sprintf("%s_%s_%s_%02d", kind, addressID(t.addr), nextUID(), t.pre.NewSymbolID())
	return builder.BitVec(name, bits)
}

// addressID renders an address as a compact lowercase identifier for symbol names.
func addressID(addr common.Address) string {
	return strings.TrimLeft(strings.ToLower(addr.Hex()[2:]), "0")
}
