package testutil

import "fmt"

// Seed bundles a human-readable name with seed bytes.
//
// Curated seed sequences are hand-crafted to exercise specific scenarios that
// random fuzzing might take a long time to discover. Each seed produces a
// deterministic sequence of operations when fed to an OpGenerator built
// with DefaultOpGenConfig and SeedElemSize.
//
// Use RunBehaviorWithSeed to execute these:
//
//	testutil.RunBehaviorWithSeed(t, seed.Data, cfg)
type Seed struct {
	Name string
	Data []byte
}

// SeedElemSize is the element size curated seeds are encoded for.
const SeedElemSize = 4

// CuratedSeeds returns all curated seeds with descriptive names.
func CuratedSeeds() []Seed {
	return []Seed{
		{Name: "grow_and_drain", Data: SeedGrowAndDrain()},
		{Name: "empty_pops", Data: SeedEmptyPops()},
		{Name: "reserve_cycle", Data: SeedReserveCycle()},
		{Name: "grow_retry_single_slot", Data: SeedGrowRetry()},
		{Name: "grow_fails_completely", Data: SeedGrowFails()},
		{Name: "shrink_fails_on_pop", Data: SeedShrinkFails()},
		{Name: "reserve_fails", Data: SeedReserveFails()},
		{Name: "invalid_inputs", Data: SeedInvalidInputs()},
	}
}

// SeedGrowAndDrain pushes past two doublings, then pops everything so the
// region shrinks back to the floor.
func SeedGrowAndDrain() []byte {
	b := NewSeedBuilder(nil)
	for i := range 45 {
		b.PushInt(uint32(i))
	}

	for range 45 {
		b.Pop()
	}

	return b.Bytes()
}

// SeedEmptyPops pops and peeks an empty stack, then recovers with a push.
func SeedEmptyPops() []byte {
	return NewSeedBuilder(nil).
		Pop().Peek().Pop().
		PushInt(7).Peek().Pop().Pop().
		Bytes()
}

// SeedReserveCycle raises and lowers the floor around a filled stack.
func SeedReserveCycle() []byte {
	b := NewSeedBuilder(nil).Reserve(50)
	for i := range 30 {
		b.PushInt(uint32(i * 3))
	}

	b.Reserve(0).Reserve(63)
	for range 30 {
		b.Pop()
	}

	return b.Reserve(5).Bytes()
}

// SeedGrowRetry makes a doubling fail so the single-slot retry kicks in.
func SeedGrowRetry() []byte {
	b := NewSeedBuilder(nil)
	for i := range 10 {
		b.PushInt(uint32(i))
	}

	b.FailAllocations(1)
	for i := range 5 {
		b.PushInt(uint32(100 + i))
	}

	return b.Bytes()
}

// SeedGrowFails refuses both the doubling and the retry, then recovers.
func SeedGrowFails() []byte {
	b := NewSeedBuilder(nil)
	for i := range 10 {
		b.PushInt(uint32(i))
	}

	return b.FailAllocations(2).PushInt(0xDEAD).PushInt(0xBEEF).Peek().Bytes()
}

// SeedShrinkFails refuses the shrink a pop asks for.
func SeedShrinkFails() []byte {
	b := NewSeedBuilder(nil)
	for i := range 21 {
		b.PushInt(uint32(i))
	}

	for range 10 {
		b.Pop()
	}

	b.FailAllocations(3)
	for range 11 {
		b.Pop()
	}

	return b.Bytes()
}

// SeedReserveFails refuses the allocation a reserve needs.
func SeedReserveFails() []byte {
	return NewSeedBuilder(nil).
		PushInt(1).
		FailAllocations(1).Reserve(40).
		Reserve(40).
		FailAllocations(3).Reserve(12).
		PushInt(2).Pop().Pop().
		Bytes()
}

// SeedInvalidInputs mixes wrong-size pushes and negative reserves with
// valid ops.
func SeedInvalidInputs() []byte {
	return NewSeedBuilder(nil).
		PushWrongSize(0).
		PushInt(5).
		PushWrongSize(9).
		ReserveInvalid(2).
		Peek().
		PushWrongSize(3).
		Pop().
		Bytes()
}

// SeedBuilder builds deterministic byte seeds for OpGenerator without
// hand-writing raw byte sequences.
//
// The builder encodes values according to OpGenerator's byte consumption
// order for elements of SeedElemSize bytes.
type SeedBuilder struct {
	cfg  OpGenConfig
	data []byte
}

// NewSeedBuilder creates a new builder for the given OpGenerator config.
// A nil config selects DefaultOpGenConfig.
func NewSeedBuilder(cfg *OpGenConfig) *SeedBuilder {
	if cfg == nil {
		def := DefaultOpGenConfig()
		cfg = &def
	}

	return &SeedBuilder{cfg: *cfg}
}

// Bytes returns a copy of the built seed bytes.
func (b *SeedBuilder) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

// Push appends a push of value, which must be SeedElemSize bytes.
func (b *SeedBuilder) Push(value []byte) *SeedBuilder {
	if len(value) != SeedElemSize {
		panic(fmt.Sprintf("seed builder: push value is %d bytes, want %d", len(value), SeedElemSize))
	}

	b.choose(0, b.cfg.PushRate)
	b.data = append(b.data, value...)

	return b
}

// PushInt appends a push of v in little-endian order.
func (b *SeedBuilder) PushInt(v uint32) *SeedBuilder {
	return b.Push([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// Pop appends a pop.
func (b *SeedBuilder) Pop() *SeedBuilder {
	b.choose(b.cfg.PushRate, b.cfg.PopRate)

	return b
}

// Peek appends a peek.
func (b *SeedBuilder) Peek() *SeedBuilder {
	b.choose(b.cfg.PushRate+b.cfg.PopRate, b.cfg.PeekRate)

	return b
}

// Reserve appends a reserve of n slots.
func (b *SeedBuilder) Reserve(n int) *SeedBuilder {
	if n < 0 || n >= b.cfg.MaxReserve {
		panic(fmt.Sprintf("seed builder: reserve %d outside [0, %d)", n, b.cfg.MaxReserve))
	}

	b.chooseReserve()
	b.appendPercent(false, b.cfg.InvalidInputRate)
	b.data = append(b.data, byte(n))

	return b
}

// ReserveInvalid appends a reserve of -1-k slots.
func (b *SeedBuilder) ReserveInvalid(k int) *SeedBuilder {
	b.chooseReserve()
	b.appendPercent(true, b.cfg.InvalidInputRate)
	b.data = append(b.data, byte(k))

	return b
}

// FailAllocations appends an op refusing the next n allocations.
func (b *SeedBuilder) FailAllocations(n int) *SeedBuilder {
	if n < 1 || n > maxFailBurst {
		panic(fmt.Sprintf("seed builder: fail burst %d outside [1, %d]", n, maxFailBurst))
	}

	b.choose(b.cfg.PushRate+b.cfg.PopRate+b.cfg.PeekRate+b.cfg.ReserveRate, b.cfg.FailRate)
	b.data = append(b.data, byte(n-1))

	return b
}

// PushWrongSize appends a push of an n-byte element. n must differ from
// SeedElemSize and be below 2*SeedElemSize+2.
func (b *SeedBuilder) PushWrongSize(n int) *SeedBuilder {
	if n == SeedElemSize || n < 0 || n >= 2*SeedElemSize+2 {
		panic(fmt.Sprintf("seed builder: wrong size %d not encodable", n))
	}

	start := b.cfg.PushRate + b.cfg.PopRate + b.cfg.PeekRate + b.cfg.ReserveRate + b.cfg.FailRate
	b.choose(start, 100-start)
	b.data = append(b.data, byte(n))

	return b
}

func (b *SeedBuilder) chooseReserve() {
	b.choose(b.cfg.PushRate+b.cfg.PopRate+b.cfg.PeekRate, b.cfg.ReserveRate)
}

// choose appends the op-selection byte for the range [start, start+rate).
func (b *SeedBuilder) choose(start, rate int) {
	if rate <= 0 {
		panic("seed builder: op disabled by config")
	}

	b.data = append(b.data, byte(start))
}

func (b *SeedBuilder) appendPercent(below bool, rate int) {
	if below {
		if rate <= 0 {
			panic("seed builder: rate is zero")
		}

		b.data = append(b.data, 0)

		return
	}

	if rate >= 100 {
		panic("seed builder: rate is 100")
	}

	b.data = append(b.data, 99)
}
