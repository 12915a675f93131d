package solving

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExecutorRegistryDeregister ensures deregistered executors are forgotten, so a registry-wide shutdown only
// reaches the pools still running.
func TestExecutorRegistryDeregister(t *testing.T) {
	registry := NewExecutorRegistry()
	finished := NewExecutor(1)
	running := NewExecutor(1)
	defer finished.Shutdown(true)
	defer running.Shutdown(true)

	registry.Register(finished)
	registry.Register(running)
	assert.EqualValues(t, 2, registry.Count())

	registry.Deregister(finished)
	assert.EqualValues(t, 1, registry.Count())

	// Deregistering twice is harmless.
	registry.Deregister(finished)
	assert.EqualValues(t, 1, registry.Count())

	registry.ShutdownAll()
	assert.False(t, finished.IsShutdown())
	assert.True(t, running.IsShutdown())
}
