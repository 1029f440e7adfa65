package testutil

// OpGenConfig configures the operation generator. Rates are percentages;
// whatever the listed rates leave to 100 goes to wrong-size pushes.
type OpGenConfig struct {
	// PushRate is the percentage of ops that push an element.
	PushRate int

	// PopRate is the percentage of ops that pop.
	PopRate int

	// PeekRate is the percentage of ops that peek.
	PeekRate int

	// ReserveRate is the percentage of ops that reserve capacity.
	ReserveRate int

	// FailRate is the percentage of ops that arm allocation failures.
	FailRate int

	// InvalidInputRate is the percentage of reserve counts that are negative.
	InvalidInputRate int

	// MaxReserve bounds reserve counts (exclusive). At most 256.
	MaxReserve int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		PushRate:         45,
		PopRate:          30,
		PeekRate:         10,
		ReserveRate:      7,
		FailRate:         4,
		InvalidInputRate: 10,
		MaxReserve:       64,
	}
}

// maxFailBurst bounds how many allocations one fail op arms.
const maxFailBurst = 3

// OpGenerator generates deterministic operations from a byte stream.
type OpGenerator struct {
	stream   *ByteStream
	config   OpGenConfig
	elemSize int
}

// NewOpGenerator creates a new operation generator for elements of
// elemSize bytes.
func NewOpGenerator(fuzzBytes []byte, elemSize int, cfg *OpGenConfig) *OpGenerator {
	return &OpGenerator{
		stream:   NewByteStream(fuzzBytes),
		config:   *cfg,
		elemSize: elemSize,
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	// Choose operation type based on configured rates
	choice := int(g.stream.NextByte()) % 100

	cumulative := 0

	cumulative += g.config.PushRate
	if choice < cumulative {
		return OpPush{Value: g.stream.NextBytes(g.elemSize)}
	}

	cumulative += g.config.PopRate
	if choice < cumulative {
		return OpPop{}
	}

	cumulative += g.config.PeekRate
	if choice < cumulative {
		return OpPeek{}
	}

	cumulative += g.config.ReserveRate
	if choice < cumulative {
		return g.genReserve()
	}

	cumulative += g.config.FailRate
	if choice < cumulative {
		return OpFailAllocations{N: 1 + g.stream.NextInt(maxFailBurst)}
	}

	return g.genWrongSize()
}

func (g *OpGenerator) genReserve() Op {
	if g.stream.NextPercent(g.config.InvalidInputRate) {
		return OpReserve{N: -1 - g.stream.NextInt(4)}
	}

	return OpReserve{N: g.stream.NextInt(g.config.MaxReserve)}
}

func (g *OpGenerator) genWrongSize() Op {
	n := g.stream.NextInt(2*g.elemSize + 2)
	if n == g.elemSize {
		n++
	}

	return OpPushWrongSize{Len: n}
}
