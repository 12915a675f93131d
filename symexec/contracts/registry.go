package contracts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/utils"
)

// ErrContractNotFound is returned when no contract metadata is registered for a requested name or address.
var ErrContractNotFound = errors.New("no contract metadata registered")

// Registry holds the contract definitions known to the engine, indexed by contract name and source path. It is the
// lookup surface of the build/ABI metadata collaborator.
type Registry struct {
	// contracts is the ordered list of registered contract definitions.
	contracts []*Contract
}

// NewRegistry returns a new, empty contract Registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make([]*Contract, 0),
	}
}

// Register adds a contract definition to the registry.
func (r *Registry) Register(contract *Contract) {
	r.contracts = append(r.contracts, contract)
}

// Contracts returns all registered contract definitions, in registration order.
func (r *Registry) Contracts() []*Contract {
	return r.contracts
}

// Get looks up a contract by name. If sourcePath is non-empty, it disambiguates between same-named contracts in
// different source files. Returns an error wrapping ErrContractNotFound if no match exists.
func (r *Registry) Get(name string, sourcePath string) (*Contract, error) {
	for _, contract := range r.contracts {
		if contract.Name() != name {
			continue
		}
		if sourcePath != "" && contract.SourcePath() != sourcePath {
			continue
		}
		return contract, nil
	}
	return nil, errors.Wrapf(ErrContractNotFound, "contract %q (source %q)", name, sourcePath)
}

// buildArtifact describes the fields of a compiled build artifact JSON file which the registry consumes.
type buildArtifact struct {
	ContractName string          `json:"contractName"`
	SourcePath   string          `json:"sourcePath"`
	Abi          json.RawMessage `json:"abi"`
	Bytecode     struct {
		Object string `json:"object"`
	} `json:"bytecode"`
	DeployedBytecode struct {
		Object string `json:"object"`
	} `json:"deployedBytecode"`
}

// LoadArtifactsDirectory reads every JSON build artifact in the provided directory (non-recursively) and returns a
// Registry populated with the contracts described by them. Files which are not parseable artifacts are skipped.
func LoadArtifactsDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read artifacts directory %q", dir)
	}

	registry := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Read and parse the artifact file.
		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		var artifact buildArtifact
		if err = json.Unmarshal(b, &artifact); err != nil || artifact.ContractName == "" || len(artifact.Abi) == 0 {
			// Not a build artifact we understand.
			continue
		}

		// Parse the embedded ABI definition.
		contractAbi, err := abi.JSON(strings.NewReader(string(artifact.Abi)))
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse ABI for contract %q", artifact.ContractName)
		}

		// Artifact bytecode objects appear both with and without the hex prefix depending on the build platform.
		registry.Register(NewContract(
			artifact.ContractName,
			artifact.SourcePath,
			contractAbi,
			utils.AttachHexPrefix(artifact.Bytecode.Object),
			utils.AttachHexPrefix(artifact.DeployedBytecode.Object),
		))
	}
	return registry, nil
}
