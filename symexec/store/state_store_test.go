package store

import (
	"testing"

	"github.com/scrylabs/solvent/symexec/vm"
	"github.com/stretchr/testify/assert"
)

// fingerprintOf builds a deterministic fingerprint for testing.
func fingerprintOf(b byte) vm.Fingerprint {
	var fingerprint vm.Fingerprint
	for i := range fingerprint {
		fingerprint[i] = b
	}
	return fingerprint
}

// TestStateStoreVisitedRecords ensures visited fingerprints are observable before and after flushing, and survive
// reopening the store.
func TestStateStoreVisitedRecords(t *testing.T) {
	dir := t.TempDir()
	stateStore, err := Open(dir)
	assert.NoError(t, err)

	// Record a fingerprint and verify it is visible while still buffered.
	fingerprint := fingerprintOf(0xaa)
	assert.NoError(t, stateStore.RecordVisited(fingerprint, 1, 2))
	visited, err := stateStore.HasVisited(fingerprint)
	assert.NoError(t, err)
	assert.True(t, visited)

	// The on-disk count only reflects flushed writes.
	count, err := stateStore.VisitedCount()
	assert.NoError(t, err)
	assert.EqualValues(t, 0, count)

	assert.NoError(t, stateStore.Flush())
	count, err = stateStore.VisitedCount()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// Reopen the store and verify the record persisted.
	assert.NoError(t, stateStore.Close())
	stateStore, err = Open(dir)
	assert.NoError(t, err)
	defer stateStore.Close()

	visited, err = stateStore.HasVisited(fingerprint)
	assert.NoError(t, err)
	assert.True(t, visited)

	// An unknown fingerprint is not reported as visited.
	visited, err = stateStore.HasVisited(fingerprintOf(0xbb))
	assert.NoError(t, err)
	assert.False(t, visited)
}

// TestStateStoreBatchedFlush ensures the write buffer flushes automatically once it reaches its threshold.
func TestStateStoreBatchedFlush(t *testing.T) {
	stateStore, err := Open(t.TempDir())
	assert.NoError(t, err)
	defer stateStore.Close()

	// Queue enough writes to cross the flush threshold.
	for i := 0; i < flushThreshold; i++ {
		assert.NoError(t, stateStore.RecordVisited(fingerprintOf(byte(i)), 1, 1))
	}
	count, err := stateStore.VisitedCount()
	assert.NoError(t, err)
	assert.EqualValues(t, flushThreshold, count)
}

// TestStateStoreProbeRecords ensures probe findings persist across a close and reopen.
func TestStateStoreProbeRecords(t *testing.T) {
	dir := t.TempDir()
	stateStore, err := Open(dir)
	assert.NoError(t, err)

	assert.NoError(t, stateStore.RecordProbe("Vault", "withdraw(uint256)"))
	assert.NoError(t, stateStore.Close())

	// Distinct sites must derive distinct keys.
	assert.NotEqualValues(t, probeKey("Vault", "withdraw(uint256)"), probeKey("Vault", "deposit()"))

	stateStore, err = Open(dir)
	assert.NoError(t, err)
	defer stateStore.Close()
}
