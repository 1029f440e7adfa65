package testutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/guardstack/internal/testutil"
)

func Test_OpGenerator_Decodes_Every_Op_When_Seeded(t *testing.T) {
	t.Parallel()

	seed := testutil.NewSeedBuilder(nil).
		PushInt(0x01020304).
		Pop().
		Peek().
		Reserve(17).
		ReserveInvalid(2).
		FailAllocations(3).
		PushWrongSize(9).
		Bytes()

	cfg := testutil.DefaultOpGenConfig()
	gen := testutil.NewOpGenerator(seed, testutil.SeedElemSize, &cfg)

	var got []testutil.Op
	for gen.HasMore() {
		got = append(got, gen.NextOp())
	}

	want := []testutil.Op{
		testutil.OpPush{Value: []byte{4, 3, 2, 1}},
		testutil.OpPop{},
		testutil.OpPeek{},
		testutil.OpReserve{N: 17},
		testutil.OpReserve{N: -3},
		testutil.OpFailAllocations{N: 3},
		testutil.OpPushWrongSize{Len: 9},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func Test_OpGenerator_Never_Emits_Matching_Size_When_Wrong_Size_Chosen(t *testing.T) {
	t.Parallel()

	cfg := testutil.OpGenConfig{}
	stream := make([]byte, 0, 512)

	for n := range 256 {
		// choice byte 0 with every rate zero selects a wrong-size push.
		stream = append(stream, 0, byte(n))
	}

	gen := testutil.NewOpGenerator(stream, 4, &cfg)

	for gen.HasMore() {
		next := gen.NextOp()

		op, ok := next.(testutil.OpPushWrongSize)
		if !ok {
			t.Fatalf("expected OpPushWrongSize, got %T", next)
		}

		if op.Len == 4 {
			t.Fatalf("wrong-size push with matching length %d", op.Len)
		}
	}
}

func Test_OpGenerator_Pads_With_Zeros_When_Stream_Exhausted(t *testing.T) {
	t.Parallel()

	cfg := testutil.DefaultOpGenConfig()
	// A lone choice byte selecting push: the value bytes are missing.
	gen := testutil.NewOpGenerator([]byte{0}, 3, &cfg)

	op := gen.NextOp()

	if diff := cmp.Diff(testutil.OpPush{Value: []byte{0, 0, 0}}, op); diff != "" {
		t.Fatalf("op mismatch (-want +got):\n%s", diff)
	}

	if gen.HasMore() {
		t.Fatal("HasMore=true after stream consumed")
	}
}

func Test_SeedBuilder_Panics_When_Op_Not_Encodable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(b *testutil.SeedBuilder)
	}{
		{name: "ShortPush", build: func(b *testutil.SeedBuilder) { b.Push([]byte{1}) }},
		{name: "ReserveTooLarge", build: func(b *testutil.SeedBuilder) { b.Reserve(64) }},
		{name: "FailBurstZero", build: func(b *testutil.SeedBuilder) { b.FailAllocations(0) }},
		{name: "WrongSizeMatches", build: func(b *testutil.SeedBuilder) { b.PushWrongSize(testutil.SeedElemSize) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()

			tt.build(testutil.NewSeedBuilder(nil))
		})
	}
}

func Test_CuratedSeeds_Decode_Without_Wrong_Size_Pushes_When_Not_Requested(t *testing.T) {
	t.Parallel()

	cfg := testutil.DefaultOpGenConfig()

	for _, seed := range testutil.CuratedSeeds() {
		if seed.Name == "invalid_inputs" {
			continue
		}

		gen := testutil.NewOpGenerator(seed.Data, testutil.SeedElemSize, &cfg)
		for gen.HasMore() {
			if op, ok := gen.NextOp().(testutil.OpPushWrongSize); ok {
				t.Fatalf("seed %s decoded an unexpected %s", seed.Name, op)
			}
		}
	}
}
