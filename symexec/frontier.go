package symexec

import (
	"fmt"

	"github.com/crytic/medusa-geth/common"
	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec/vm"
)

// StateSource is a pull iterator over execution states. It has a single consumer: the exploration goroutine pulls
// one state at a time and may stop consuming at any point, leaving the remainder uncomputed. After Next returns
// false, Err reports whether iteration stopped because of a failure rather than exhaustion.
type StateSource interface {
	// Next returns the next state, or false when the source is exhausted or failed.
	Next() (vm.State, bool)

	// Err returns the failure which stopped iteration, if any.
	Err() error
}

// frontierEntry is the memoized result of one frontier depth. States are appended as the first consumer produces
// them, so replays observe the same prefix even if the first consumer stopped early.
type frontierEntry struct {
	states []vm.State
}

// sliceStateSource replays an already-computed frontier entry.
type sliceStateSource struct {
	states []vm.State
	index  int
}

func (s *sliceStateSource) Next() (vm.State, bool) {
	if s.index >= len(s.states) {
		return nil, false
	}
	state := s.states[s.index]
	s.index++
	return state, true
}

func (s *sliceStateSource) Err() error {
	return nil
}

// Frontier returns a source of the frontier states at the provided depth. Depth zero is the setup state; depth d
// is computed lazily from depth d-1 by executing every state-mutating function of every deployed target contract
// against each predecessor. Computed states are memoized, so a second request for the same depth replays the cache
// instead of re-executing. The returned source must be consumed from the exploration goroutine only.
func (c *ContractContext) Frontier(depth int) StateSource {
	if entry, ok := c.frontier[depth]; ok {
		return &sliceStateSource{states: entry.states}
	}
	if depth <= 0 {
		// Depth zero is seeded with the setup state before exploration starts.
		return &sliceStateSource{}
	}

	return &frontierComputer{
		ctx:        c,
		depth:      depth,
		entry:      &frontierEntry{},
		prevSource: c.Frontier(depth - 1),
	}
}

// frontierComputer computes one frontier depth lazily: predecessors are pulled from the previous depth's source
// one at a time, and each successor state is classified, deduplicated, and admitted (or discarded) before the next
// one is produced.
type frontierComputer struct {
	ctx   *ContractContext
	depth int
	entry *frontierEntry

	// prevSource yields the predecessor states of the previous depth.
	prevSource StateSource
	err        error

	current    *targetRun
	currentPre vm.State
	addrs      []common.Address
	addrIndex  int
	started    bool
	done       bool
}

func (f *frontierComputer) Err() error {
	return f.err
}

func (f *frontierComputer) Next() (vm.State, bool) {
	if f.done {
		return nil, false
	}
	// The cache entry is installed on the first pull, so a source created but never consumed leaves no record
	// behind and the depth stays computable by a later consumer.
	if !f.started {
		f.started = true
		f.ctx.frontier[f.depth] = f.entry
	}
	for {
		// Drain the current target contract run first.
		if f.current != nil {
			for {
				post, ok := f.current.Next()
				if !ok {
					if err := f.current.Err(); err != nil {
						f.fail(err)
						return nil, false
					}
					f.current = nil
					break
				}
				admitted, ok := f.admit(f.currentPre, post)
				if !ok {
					continue
				}
				f.entry.states = append(f.entry.states, admitted)
				return admitted, true
			}
		}

		// Advance to the next deployed target address of the current predecessor.
		if f.currentPre != nil && f.addrIndex < len(f.addrs) {
			addr := f.addrs[f.addrIndex]
			f.addrIndex++
			if addr == TestContractAddress {
				continue
			}
			run, err := f.ctx.runTargetContract(f.currentPre, addr)
			if err != nil {
				f.fail(err)
				return nil, false
			}
			f.current = run
			continue
		}

		// Pull the next predecessor state.
		pre, ok := f.prevSource.Next()
		if !ok {
			if err := f.prevSource.Err(); err != nil {
				f.fail(err)
				return nil, false
			}
			f.done = true
			return nil, false
		}
		f.currentPre = pre
		f.addrs = pre.CodeAddresses()
		f.addrIndex = 0
		f.ctx.logger.Debug("Expanding frontier", colors.Bold, " depth ", f.depth, colors.Reset,
			fmt.Sprintf(" (sequence length %d)", len(pre.CallSequence())))
	}
}

// fail records the error that stopped computation and marks the source exhausted.
func (f *frontierComputer) fail(err error) {
	f.err = err
	f.done = true
}

// admit classifies one successor state and decides whether it joins the frontier. Stuck states are logged and
// discarded. Reverted states are inspected for panic probes and discarded. Normally terminated states are
// deduplicated by fingerprint, given their extended call sequence and a fresh monotonic symbolic timestamp, and
// admitted.
func (f *frontierComputer) admit(pre vm.State, post vm.State) (vm.State, bool) {
	ctx := f.ctx
	callContext := post.Context()

	if callContext.IsStuck() {
		ctx.logger.Error("Encountered stuck path during frontier expansion", colors.Bold,
			fmt.Sprintf(" reason: %s", callContext.StuckReason), colors.Reset)
		return nil, false
	}

	if callContext.Output.Err != nil {
		f.reportProbe(post, callContext)
		return nil, false
	}

	// Canonicalize the path before fingerprinting.
	post.PathSlice()
	fingerprint, err := ctx.backend.Hasher.Fingerprint(post)
	if err != nil {
		ctx.logger.Error("Failed to fingerprint frontier state", err)
		return nil, false
	}
	if _, seen := ctx.visited[fingerprint]; seen {
		return nil, false
	}
	ctx.visited[fingerprint] = struct{}{}
	ctx.logger.Debug("Admitted frontier state ", colors.Bold, fingerprint.Hex(), colors.Reset,
		fmt.Sprintf(" at depth %d", f.depth))

	sequence := make([]*vm.CallContext, 0, len(pre.CallSequence())+1)
	sequence = append(sequence, pre.CallSequence()...)
	sequence = append(sequence, callContext)
	post.SetCallSequence(sequence)

	if ctx.stateStore != nil {
		if err := ctx.stateStore.RecordVisited(fingerprint, f.depth, len(sequence)); err != nil {
			ctx.logger.Warn("Failed to record visited state", err)
		}
	}

	f.refreshTimestamp(pre, post)
	return post, true
}

// reportProbe reports an assertion failure discovered while expanding the frontier. Only panics whose code is in
// the configured set count as findings, and each (contract, function) site is reported once per contract run.
func (f *frontierComputer) reportProbe(post vm.State, callContext *vm.CallContext) {
	ctx := f.ctx
	if !post.IsPanicOf(ctx.config.PanicErrorCodes) {
		return
	}

	site := probeSite{}
	if callContext.Message != nil && callContext.Message.Function != nil {
		site.contractName = callContext.Message.Function.ContractName
		site.sig = callContext.Message.Function.Sig
	}
	if _, reported := ctx.probesReported[site]; reported {
		return
	}
	ctx.probesReported[site] = struct{}{}

	if ctx.stateStore != nil {
		if err := ctx.stateStore.RecordProbe(site.contractName, site.sig); err != nil {
			ctx.logger.Warn("Failed to record probe finding", err)
		}
	}

	location := fmt.Sprintf(" in %s.%s", site.contractName, site.sig)
	if code, ok := post.PanicCode(); ok {
		location += fmt.Sprintf(" (panic code %v)", code.Hex())
	}
	ctx.logger.Warn(colors.YellowBold, "Assertion failure detected", colors.Reset, location)
	if sequence := ctx.backend.Renderer.RenderCallSequence(post.CallSequence()); sequence != "" {
		ctx.logger.Warn("Sequence:\n", sequence)
	}
	if trace := ctx.backend.Renderer.RenderTrace(callContext); trace != "" {
		ctx.logger.Warn("Trace:\n", trace)
	}
}

// refreshTimestamp installs a fresh symbolic block timestamp on the admitted state, constrained to be at least the
// predecessor's timestamp so timestamps never decrease along a call sequence.
func (f *frontierComputer) refreshTimestamp(pre vm.State, post vm.State) {
	builder := f.ctx.backend.Interpreter.Builder()
	name := fmt.Sprintf("solvent_block_timestamp_depth%d_%s", f.depth, nextUID())
	timestamp := builder.ZeroExt(192, builder.BitVec(name, 64))
	if previous := pre.Block().Timestamp; previous != nil {
		post.Path().Append(builder.Ge(timestamp, previous))
	}
	post.Block().Timestamp = timestamp
}
