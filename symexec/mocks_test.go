package symexec

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/scrylabs/solvent/logging"
	"github.com/scrylabs/solvent/symexec/config"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/scrylabs/solvent/symexec/vm"
	"github.com/stretchr/testify/assert"
)

// vaultAbiJSON is the ABI shared by the engine tests: a harness contract with test functions plus a target
// contract's worth of state-mutating functions.
const vaultAbiJSON = `[
	{"type": "function", "name": "setUp", "inputs": [], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "check_withdraw", "inputs": [{"name": "amount", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "invariant_solvency", "inputs": [], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "deposit", "inputs": [], "outputs": [], "stateMutability": "payable"},
	{"type": "function", "name": "withdraw", "inputs": [{"name": "amount", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "balanceOf", "inputs": [{"name": "who", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view"}
]`

// targetAddress is the address the mock target contract is deployed at in test states.
var targetAddress = common.HexToAddress("0x1000000000000000000000000000000000000001")

// targetAbiJSON is the ABI of the mock target contract explored during frontier expansion.
const targetAbiJSON = `[
	{"type": "function", "name": "deposit", "inputs": [], "outputs": [], "stateMutability": "payable"},
	{"type": "function", "name": "withdraw", "inputs": [{"name": "amount", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "balanceOf", "inputs": [{"name": "who", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view"}
]`

// newVaultContract parses the shared test harness ABI into a Contract.
func newVaultContract(t *testing.T) *contracts.Contract {
	parsedAbi, err := abi.JSON(strings.NewReader(vaultAbiJSON))
	assert.NoError(t, err)
	return contracts.NewContract("VaultTest", "test/VaultTest.t.sol", parsedAbi, "0x6080aa", "0x6080bb")
}

// newVaultTargetContract parses the mock target contract ABI into a Contract.
func newVaultTargetContract(t *testing.T) *contracts.Contract {
	parsedAbi, err := abi.JSON(strings.NewReader(targetAbiJSON))
	assert.NoError(t, err)
	return contracts.NewContract("Vault", "src/Vault.sol", parsedAbi, "0x6080cc", "0x6080dd")
}

// fakeExpr is a plain-string expression handle.
type fakeExpr struct {
	repr string
}

func (e fakeExpr) String() string {
	return e.repr
}

// fakeBuilder renders expressions as readable strings so tests can assert on them.
type fakeBuilder struct{}

func (fakeBuilder) BitVec(name string, bits uint) vm.Expr {
	return fakeExpr{repr: name}
}

func (fakeBuilder) ZeroExt(bits uint, value vm.Expr) vm.Expr {
	return fakeExpr{repr: fmt.Sprintf("zext(%d, %s)", bits, value)}
}

func (fakeBuilder) Ge(a vm.Expr, b vm.Expr) vm.Expr {
	return fakeExpr{repr: fmt.Sprintf("(%s >= %s)", a, b)}
}

// fakePath records every operation performed on it.
type fakePath struct {
	constraints []string
	appended    []vm.Expr
	dynParams   []vm.DynParam
	smt         string
	smtErr      error
}

func (p *fakePath) Extend(other vm.Path) {
	if o, ok := other.(*fakePath); ok {
		p.constraints = append(p.constraints, o.constraints...)
	}
}

func (p *fakePath) ProcessDynParams(params []vm.DynParam) {
	p.dynParams = append(p.dynParams, params...)
}

func (p *fakePath) Append(condition vm.Expr) {
	p.appended = append(p.appended, condition)
}

func (p *fakePath) ToSMT2() (string, error) {
	if p.smtErr != nil {
		return "", p.smtErr
	}
	if p.smt == "" {
		return "(check-sat)", nil
	}
	return p.smt, nil
}

// fakeState is a scriptable execution state.
type fakeState struct {
	addrs         []common.Address
	code          map[common.Address]*vm.ContractCode
	context       *vm.CallContext
	path          *fakePath
	block         vm.Block
	sequence      []*vm.CallContext
	pathSliced    int
	fingerprint   vm.Fingerprint
	panicHit      bool
	symbolCounter int
}

// newFakeState builds a normally-terminated state with the mock target contract deployed.
func newFakeState(fingerprintByte byte) *fakeState {
	var fingerprint vm.Fingerprint
	for i := range fingerprint {
		fingerprint[i] = fingerprintByte
	}
	return &fakeState{
		addrs: []common.Address{TestContractAddress, targetAddress},
		code: map[common.Address]*vm.ContractCode{
			TestContractAddress: {ContractName: "VaultTest", SourcePath: "test/VaultTest.t.sol"},
			targetAddress:       {ContractName: "Vault", SourcePath: "src/Vault.sol"},
		},
		context:     &vm.CallContext{},
		path:        &fakePath{},
		block:       vm.Block{Timestamp: fakeExpr{repr: "timestamp_0"}},
		fingerprint: fingerprint,
	}
}

func (s *fakeState) CodeAddresses() []common.Address {
	return s.addrs
}

func (s *fakeState) CodeAt(addr common.Address) (*vm.ContractCode, bool) {
	code, ok := s.code[addr]
	return code, ok
}

func (s *fakeState) Context() *vm.CallContext {
	return s.context
}

func (s *fakeState) Path() vm.Path {
	return s.path
}

func (s *fakeState) Block() *vm.Block {
	return &s.block
}

func (s *fakeState) CallSequence() []*vm.CallContext {
	return s.sequence
}

func (s *fakeState) SetCallSequence(sequence []*vm.CallContext) {
	s.sequence = sequence
}

func (s *fakeState) PathSlice() {
	s.pathSliced++
}

func (s *fakeState) IsPanicOf(codes []uint64) bool {
	return s.panicHit && len(codes) > 0
}

func (s *fakeState) PanicCode() (*uint256.Int, bool) {
	if !s.panicHit {
		return nil, false
	}
	return uint256.NewInt(0x01), true
}

func (s *fakeState) NewSymbolID() int {
	s.symbolCounter++
	return s.symbolCounter - 1
}

func (s *fakeState) ResolveLibs(creationHexcode string, deployedHexcode string) (string, error) {
	return creationHexcode, nil
}

// fakeInterpreter dispatches to scriptable hooks.
type fakeInterpreter struct {
	newExec    func(params vm.ExecParams) (vm.State, error)
	runMessage func(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error)
	runCount   int
}

func (i *fakeInterpreter) Builder() vm.ExprBuilder {
	return fakeBuilder{}
}

func (i *fakeInterpreter) NewPath(session *solving.Session) vm.Path {
	return &fakePath{}
}

func (i *fakeInterpreter) NewExec(params vm.ExecParams) (vm.State, error) {
	if i.newExec != nil {
		return i.newExec(params)
	}
	return newFakeState(0x01), nil
}

func (i *fakeInterpreter) RunMessage(state vm.State, message *vm.Message, path vm.Path) ([]vm.State, error) {
	i.runCount++
	return i.runMessage(state, message, path)
}

// fakeSolver counts queries and dispatches to a scriptable hook. Solve must be callable from worker goroutines.
type fakeSolver struct {
	mu    sync.Mutex
	calls int
	solve func(query solving.Query) solving.Output
}

func (s *fakeSolver) Solve(query solving.Query) solving.Output {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.solve != nil {
		return s.solve(query)
	}
	return solving.Output{Result: solving.ResultUnsat}
}

func (s *fakeSolver) Version() (string, error) {
	return "4.13.1", nil
}

func (s *fakeSolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeRenderer counts rendering calls and returns fixed text so tests can assert diagnostics were emitted.
type fakeRenderer struct {
	traceCalls    int
	sequenceCalls int
}

func (r *fakeRenderer) RenderTrace(callContext *vm.CallContext) string {
	r.traceCalls++
	return "rendered trace"
}

func (r *fakeRenderer) RenderCallSequence(sequence []*vm.CallContext) string {
	r.sequenceCalls++
	return "rendered sequence"
}

// fakeHasher returns the fingerprint baked into each fake state.
type fakeHasher struct{}

func (fakeHasher) Fingerprint(state vm.State) (vm.Fingerprint, error) {
	return state.(*fakeState).fingerprint, nil
}

// fakeCalldata produces a placeholder calldata expression per function.
type fakeCalldata struct{}

func (fakeCalldata) NewCalldata(contract *contracts.Contract, function contracts.FunctionInfo, newSymbolID func() int) (vm.Expr, []vm.DynParam, error) {
	newSymbolID()
	return fakeExpr{repr: "calldata_" + function.Sig}, nil, nil
}

// newTestEngine wires an Engine around the provided mock collaborators, with console logging disabled.
func newTestEngine(t *testing.T, interp *fakeInterpreter, solver *fakeSolver) (*Engine, *contracts.Registry) {
	projectConfig := config.GetDefaultProjectConfig()
	projectConfig.Logging.EnableConsoleLogging = false
	backend := &Backend{
		Interpreter: interp,
		Solver:      solver,
		Hasher:      fakeHasher{},
		Calldata:    fakeCalldata{},
	}
	assert.NoError(t, backend.Validate())

	registry := contracts.NewRegistry()
	return &Engine{
		config:   projectConfig,
		registry: registry,
		backend:  backend,
		logger:   logging.NewLogger(zerolog.Disabled, false),
	}, registry
}

// newTestContractContext builds a ContractContext around the provided engine and contract, registering the
// contract with the engine's registry.
func newTestContractContext(e *Engine, registry *contracts.Registry, contract *contracts.Contract) *ContractContext {
	registry.Register(contract)
	return newContractContext(&e.config.Symexec, e.backend, contract, registry, nil, e.logger)
}

// revertedContext builds a call context whose output failed with the provided function attributed.
func revertedContext(function *contracts.FunctionInfo) *vm.CallContext {
	return &vm.CallContext{
		Message: &vm.Message{Function: function},
		Output:  vm.CallOutput{Err: fmt.Errorf("execution reverted")},
	}
}
