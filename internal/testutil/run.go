package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// RunConfig configures a behavior test run.
type RunConfig struct {
	// MaxOps is the maximum number of operations to execute.
	MaxOps int

	// CompareStateEveryN runs full state comparison every N operations.
	// Set to 0 to disable periodic checks (only check at end).
	CompareStateEveryN int

	// Options configures the stack under test. Allocator is replaced by
	// the harness.
	Options guardstack.Options
}

// DefaultRunConfig returns a balanced configuration for behavior tests.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxOps:             200,
		CompareStateEveryN: 10,
		Options:            guardstack.Options{ElemSize: 4},
	}
}

// RunBehavior executes a deterministic stream of operations and compares
// the behavior between the model and the real stack.
func RunBehavior(tb testing.TB, cfg RunConfig, gen *OpGenerator) {
	tb.Helper()

	if cfg.MaxOps <= 0 {
		tb.Fatalf("RunBehavior requires MaxOps > 0")
	}

	h := NewHarness(tb, cfg.Options)
	history := make([]string, 0, cfg.MaxOps)

	for opIndex := 1; opIndex <= cfg.MaxOps && gen.HasMore(); opIndex++ {
		op := gen.NextOp()
		history = append(history, op.String())

		modelRes, realRes := h.Apply(op)

		err := compareResults(op, &modelRes, &realRes)
		if err != nil {
			tb.Fatalf("%v\n%s", err, FormatOps(history))
		}

		if cfg.CompareStateEveryN > 0 && opIndex%cfg.CompareStateEveryN == 0 {
			err := CompareState(h)
			if err != nil {
				tb.Fatalf("%v\n%s", err, FormatOps(history))
			}
		}
	}

	err := CompareState(h)
	if err != nil {
		tb.Fatalf("%v\n%s", err, FormatOps(history))
	}

	err = CompareDrain(h)
	if err != nil {
		tb.Fatalf("%v\n%s", err, FormatOps(history))
	}
}

// RunBehaviorWithSeed runs behavior tests with a specific byte seed and the
// default generator config.
func RunBehaviorWithSeed(tb testing.TB, seed []byte, cfg RunConfig) {
	tb.Helper()

	genCfg := DefaultOpGenConfig()
	RunBehavior(tb, cfg, NewOpGenerator(seed, cfg.Options.ElemSize, &genCfg))
}

// compareResults compares model and real results.
func compareResults(op Op, modelRes, realRes *Result) error {
	if modelRes.OK() != realRes.OK() {
		if modelRes.OK() {
			return fmt.Errorf("model succeeded but stack failed: %s: %w", op.String(), realRes.Err)
		}

		return fmt.Errorf("model failed but stack succeeded: %s, model error: %w", op.String(), modelRes.Err)
	}

	if !modelRes.OK() {
		if !SameErrorClass(modelRes.Err, realRes.Err) {
			return fmt.Errorf("error class mismatch: %s, model: %v, stack: %w", op.String(), modelRes.Err, realRes.Err)
		}

		return nil
	}

	if !bytes.Equal(modelRes.Value, realRes.Value) {
		return fmt.Errorf("value mismatch: %s, model: %x, stack: %x", op.String(), modelRes.Value, realRes.Value)
	}

	if modelRes.N != realRes.N {
		return fmt.Errorf("count mismatch: %s, model: %d, stack: %d", op.String(), modelRes.N, realRes.N)
	}

	return nil
}

// CompareState checks size, capacity, floor, status and every live slot of
// the real stack against the model.
func CompareState(h *Harness) error {
	m := h.Model
	stk := h.Stack

	if got, want := stk.Status(), m.Status(); got != want {
		return fmt.Errorf("status: stack=%s model=%s", got, want)
	}

	if got, want := stk.Len(), m.Len(); got != want {
		return fmt.Errorf("len: stack=%d model=%d", got, want)
	}

	if got, want := stk.Cap(), m.Cap(); got != want {
		return fmt.Errorf("cap: stack=%d model=%d", got, want)
	}

	snap := stk.Snapshot()

	if got, want := snap.MinCapacity, m.MinCapacity(); got != want {
		return fmt.Errorf("min capacity: stack=%d model=%d", got, want)
	}

	for i, elem := range m.Elems() {
		if i >= len(snap.Slots) {
			return fmt.Errorf("slot %d: missing from snapshot of %d slots", i, len(snap.Slots))
		}

		if got, want := snap.Slots[i].Hex, hexMSBFirst(elem); got != want {
			return fmt.Errorf("slot %d: stack=%s model=%s", i, got, want)
		}
	}

	return nil
}

// CompareDrain pops both sides until the model is empty, comparing every
// element, then checks the stack reports empty.
func CompareDrain(h *Harness) error {
	for h.Model.Len() > 0 {
		modelRes, realRes := h.Apply(OpPop{})

		err := compareResults(OpPop{}, &modelRes, &realRes)
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
	}

	if !h.Stack.IsEmpty() {
		return fmt.Errorf("drain: stack holds %d elements after model emptied", h.Stack.Len())
	}

	return nil
}

func hexMSBFirst(b []byte) string {
	var sb strings.Builder

	sb.WriteString("0x")

	for i := len(b) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02X", b[i])
	}

	return sb.String()
}
