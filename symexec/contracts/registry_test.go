package contracts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// TestRegistryLookup ensures registered contracts resolve by name, disambiguated by source path when needed.
func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	first := parseTestContract(t)
	registry.Register(first)

	// Same name, different source path.
	second := NewContract("VaultTest", "test/other/VaultTest.t.sol", *first.Abi(), "", "")
	registry.Register(second)

	// A name-only lookup resolves the first registration.
	found, err := registry.Get("VaultTest", "")
	assert.NoError(t, err)
	assert.Same(t, first, found)

	// A source path narrows the lookup.
	found, err = registry.Get("VaultTest", "test/other/VaultTest.t.sol")
	assert.NoError(t, err)
	assert.Same(t, second, found)

	// A missing contract reports ErrContractNotFound.
	_, err = registry.Get("Unknown", "")
	assert.True(t, errors.Is(err, ErrContractNotFound))
}

// TestLoadArtifactsDirectory ensures build artifacts are discovered from a directory and files which are not
// artifacts are skipped.
func TestLoadArtifactsDirectory(t *testing.T) {
	dir := t.TempDir()

	// Write one valid artifact.
	artifact := `{
		"contractName": "VaultTest",
		"sourcePath": "test/VaultTest.t.sol",
		"abi": ` + testContractAbiJSON + `,
		"bytecode": {"object": "0x6080aa"},
		"deployedBytecode": {"object": "0x6080bb"}
	}`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "VaultTest.json"), []byte(artifact), 0644))

	// Write an artifact whose bytecode objects carry no hex prefix, as some build platforms emit them.
	unprefixed := `{
		"contractName": "Vault",
		"sourcePath": "src/Vault.sol",
		"abi": [{"type": "function", "name": "deposit", "inputs": [], "outputs": [], "stateMutability": "payable"}],
		"bytecode": {"object": "6080cc"},
		"deployedBytecode": {"object": "6080dd"}
	}`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "Vault.json"), []byte(unprefixed), 0644))

	// Write files which must be skipped: a non-JSON file and a JSON file which is not an artifact.
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an artifact"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`{"compiler": "solc"}`), 0644))

	registry, err := LoadArtifactsDirectory(dir)
	assert.NoError(t, err)
	assert.Len(t, registry.Contracts(), 2)

	contract, err := registry.Get("VaultTest", "")
	assert.NoError(t, err)
	assert.EqualValues(t, "test/VaultTest.t.sol", contract.SourcePath())
	assert.EqualValues(t, "0x6080aa", contract.CreationHexcode())
	assert.EqualValues(t, "0x6080bb", contract.DeployedHexcode())
	assert.NotEmpty(t, contract.MethodIdentifiers())

	// Unprefixed bytecode is normalized on load.
	vault, err := registry.Get("Vault", "")
	assert.NoError(t, err)
	assert.EqualValues(t, "0x6080cc", vault.CreationHexcode())
	assert.EqualValues(t, "0x6080dd", vault.DeployedHexcode())
}
