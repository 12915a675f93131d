package contracts

import (
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/stretchr/testify/assert"
)

// testContractAbiJSON is the ABI of a small test harness contract with a mix of test, setup, view, and
// state-mutating functions.
const testContractAbiJSON = `[
	{"type": "function", "name": "setUp", "inputs": [], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "setUpSymbolic", "inputs": [{"name": "x", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "check_transfer", "inputs": [{"name": "amount", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "invariant_balance", "inputs": [], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "deposit", "inputs": [], "outputs": [], "stateMutability": "payable"},
	{"type": "function", "name": "withdraw", "inputs": [{"name": "amount", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
	{"type": "function", "name": "totalSupply", "inputs": [], "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view"},
	{"type": "function", "name": "computeHash", "inputs": [{"name": "data", "type": "bytes"}], "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "pure"}
]`

// parseTestContract creates a Contract from the shared test ABI.
func parseTestContract(t *testing.T) *Contract {
	parsedAbi, err := abi.JSON(strings.NewReader(testContractAbiJSON))
	assert.NoError(t, err)
	return NewContract("VaultTest", "test/VaultTest.t.sol", parsedAbi, "6080---", "6080===")
}

// TestStateMutatingMethods ensures pure and view functions are excluded and enumeration order is deterministic.
func TestStateMutatingMethods(t *testing.T) {
	contract := parseTestContract(t)
	methods := contract.StateMutatingMethods()

	sigs := make([]string, 0, len(methods))
	for _, method := range methods {
		sigs = append(sigs, method.Sig)
	}
	assert.NotContains(t, sigs, "totalSupply()")
	assert.NotContains(t, sigs, "computeHash(bytes)")
	assert.Contains(t, sigs, "deposit()")
	assert.Contains(t, sigs, "withdraw(uint256)")

	// The order must be stable across calls.
	assert.EqualValues(t, sigs, func() []string {
		again := make([]string, 0)
		for _, method := range contract.StateMutatingMethods() {
			again = append(again, method.Sig)
		}
		return again
	}())
}

// TestTestFunctions ensures test function discovery honors the configured prefixes.
func TestTestFunctions(t *testing.T) {
	contract := parseTestContract(t)

	testFuncs := contract.TestFunctions([]string{"test_", "check_", "prove_", "invariant_"})
	sigs := make([]string, 0, len(testFuncs))
	for _, info := range testFuncs {
		sigs = append(sigs, info.Sig)
	}
	assert.EqualValues(t, []string{"check_transfer(uint256)", "invariant_balance()"}, sigs)

	// Narrowing the prefixes narrows the discovered set.
	testFuncs = contract.TestFunctions([]string{"invariant_"})
	assert.Len(t, testFuncs, 1)
	assert.EqualValues(t, "invariant_balance()", testFuncs[0].Sig)
	assert.EqualValues(t, "VaultTest.invariant_balance()", testFuncs[0].String())
}

// TestSetupFunctionPrecedence ensures the symbolic setup overload wins over the plain one when both exist.
func TestSetupFunctionPrecedence(t *testing.T) {
	contract := parseTestContract(t)

	setupInfo, ok := contract.SetupFunction()
	assert.True(t, ok)
	assert.EqualValues(t, "setUpSymbolic(uint256)", setupInfo.Sig)

	// A contract without any setup function reports none.
	plainAbi, err := abi.JSON(strings.NewReader(`[{"type": "function", "name": "check_ok", "inputs": [], "outputs": [], "stateMutability": "nonpayable"}]`))
	assert.NoError(t, err)
	_, ok = NewContract("Plain", "test/Plain.t.sol", plainAbi, "", "").SetupFunction()
	assert.False(t, ok)
}

// TestMethodIdentifiers ensures the identifier table maps canonical signatures to 4-byte selectors.
func TestMethodIdentifiers(t *testing.T) {
	contract := parseTestContract(t)
	identifiers := contract.MethodIdentifiers()

	selector, ok := identifiers["withdraw(uint256)"]
	assert.True(t, ok)
	assert.Len(t, selector, 8)

	// The resolved FunctionInfo must carry the same selector.
	method, ok := contract.MethodBySig("withdraw(uint256)")
	assert.True(t, ok)
	assert.EqualValues(t, selector, contract.FunctionInfo(method).Selector)
}
