package contracts

import (
	"encoding/hex"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"golang.org/x/exp/slices"
)

// FunctionInfo identifies a single externally callable function on a contract. It is plain value data and is safe
// to share across threads, e.g. as part of solver callback payloads.
type FunctionInfo struct {
	// ContractName is the name of the contract declaring the function.
	ContractName string

	// Name is the bare function name, without the argument list.
	Name string

	// Sig is the canonical function signature, e.g. "transfer(address,uint256)".
	Sig string

	// Selector is the 4-byte method identifier, hex-encoded without a 0x prefix.
	Selector string
}

// String returns the fully qualified "Contract.sig" form of the function.
func (f FunctionInfo) String() string {
	return f.ContractName + "." + f.Sig
}

// Contract describes a compiled smart contract registered with the engine: its name, source path, ABI, method
// identifier table, and bytecode.
type Contract struct {
	// name represents the name of the contract.
	name string

	// sourcePath represents the path of the source file the contract was compiled from.
	sourcePath string

	// contractAbi describes the contract's ABI, including its method set and state mutability information.
	contractAbi abi.ABI

	// creationHexcode is the hex-encoded creation (deployment) bytecode of the contract.
	creationHexcode string

	// deployedHexcode is the hex-encoded runtime bytecode of the contract.
	deployedHexcode string
}

// NewContract returns a new Contract instance with the provided information.
func NewContract(name string, sourcePath string, contractAbi abi.ABI, creationHexcode string, deployedHexcode string) *Contract {
	return &Contract{
		name:            name,
		sourcePath:      sourcePath,
		contractAbi:     contractAbi,
		creationHexcode: creationHexcode,
		deployedHexcode: deployedHexcode,
	}
}

// Name returns the name of the contract.
func (c *Contract) Name() string {
	return c.name
}

// SourcePath returns the path of the source file containing the contract.
func (c *Contract) SourcePath() string {
	return c.sourcePath
}

// Abi returns the contract's ABI.
func (c *Contract) Abi() *abi.ABI {
	return &c.contractAbi
}

// CreationHexcode returns the hex-encoded creation bytecode of the contract.
func (c *Contract) CreationHexcode() string {
	return c.creationHexcode
}

// DeployedHexcode returns the hex-encoded runtime bytecode of the contract.
func (c *Contract) DeployedHexcode() string {
	return c.deployedHexcode
}

// MethodIdentifiers returns the contract's method identifier table: a mapping of canonical function signatures to
// their hex-encoded 4-byte selectors.
func (c *Contract) MethodIdentifiers() map[string]string {
	identifiers := make(map[string]string, len(c.contractAbi.Methods))
	for _, method := range c.contractAbi.Methods {
		identifiers[method.Sig] = hex.EncodeToString(method.ID)
	}
	return identifiers
}

// StateMutatingMethods returns the ABI-declared methods of the contract which may mutate state, i.e. everything
// except pure and view functions. The returned methods are sorted by signature for deterministic enumeration order.
func (c *Contract) StateMutatingMethods() []abi.Method {
	methods := make([]abi.Method, 0, len(c.contractAbi.Methods))
	for _, method := range c.contractAbi.Methods {
		if method.StateMutability == "pure" || method.StateMutability == "view" {
			continue
		}
		methods = append(methods, method)
	}
	slices.SortFunc(methods, func(a abi.Method, b abi.Method) int {
		return strings.Compare(a.Sig, b.Sig)
	})
	return methods
}

// FunctionInfo builds a FunctionInfo for the provided ABI method of this contract.
func (c *Contract) FunctionInfo(method *abi.Method) FunctionInfo {
	return FunctionInfo{
		ContractName: c.name,
		Name:         method.Name,
		Sig:          method.Sig,
		Selector:     hex.EncodeToString(method.ID),
	}
}

// TestFunctions returns FunctionInfo records for every method whose name starts with one of the provided test
// prefixes, sorted by signature.
func (c *Contract) TestFunctions(testPrefixes []string) []FunctionInfo {
	funcs := make([]FunctionInfo, 0)
	for _, method := range c.contractAbi.Methods {
		method := method
		for _, prefix := range testPrefixes {
			if strings.HasPrefix(method.Name, prefix) {
				funcs = append(funcs, c.FunctionInfo(&method))
				break
			}
		}
	}
	slices.SortFunc(funcs, func(a FunctionInfo, b FunctionInfo) int {
		return strings.Compare(a.Sig, b.Sig)
	})
	return funcs
}

// SetupFunction returns the FunctionInfo of the contract's setup function, if any. When both a plain `setUp()` and
// a `setUpSymbolic(...)` overload are declared, the lexicographically later signature wins, so the symbolic variant
// takes precedence.
func (c *Contract) SetupFunction() (FunctionInfo, bool) {
	setupSigs := make([]string, 0)
	for _, method := range c.contractAbi.Methods {
		if method.Sig == "setUp()" || strings.HasPrefix(method.Sig, "setUpSymbolic(") {
			setupSigs = append(setupSigs, method.Sig)
		}
	}
	if len(setupSigs) == 0 {
		return FunctionInfo{}, false
	}

	slices.Sort(setupSigs)
	setupSig := setupSigs[len(setupSigs)-1]
	method := c.contractAbi.Methods[methodKeyBySig(c.contractAbi, setupSig)]
	return c.FunctionInfo(&method), true
}

// FunctionBySig looks up the FunctionInfo for the provided canonical function signature. Returns the info and a
// boolean indicating whether the signature was found.
func (c *Contract) FunctionBySig(sig string) (FunctionInfo, bool) {
	for _, method := range c.contractAbi.Methods {
		if method.Sig == sig {
			method := method
			return c.FunctionInfo(&method), true
		}
	}
	return FunctionInfo{}, false
}

// MethodBySig looks up the ABI method for the provided canonical function signature.
func (c *Contract) MethodBySig(sig string) (*abi.Method, bool) {
	for key, method := range c.contractAbi.Methods {
		if method.Sig == sig {
			method := c.contractAbi.Methods[key]
			return &method, true
		}
	}
	return nil, false
}

// methodKeyBySig resolves the ABI map key for a method with the given canonical signature. The ABI method map is
// keyed by resolved names, which differ from signatures when overloads exist.
func methodKeyBySig(contractAbi abi.ABI, sig string) string {
	for key, method := range contractAbi.Methods {
		if method.Sig == sig {
			return key
		}
	}
	return ""
}
