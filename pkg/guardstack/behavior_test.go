package guardstack_test

import (
	"testing"

	"github.com/calvinalkan/guardstack/internal/testutil"
	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

func Test_Stack_Matches_Model_When_Curated_Seed_Applied(t *testing.T) {
	t.Parallel()

	for _, seed := range testutil.CuratedSeeds() {
		t.Run(seed.Name, func(t *testing.T) {
			t.Parallel()

			cfg := testutil.DefaultRunConfig()
			cfg.Options.ElemSize = testutil.SeedElemSize
			cfg.CompareStateEveryN = 1

			testutil.RunBehaviorWithSeed(t, seed.Data, cfg)
		})
	}
}

func Test_Stack_Matches_Model_When_Layers_Vary(t *testing.T) {
	t.Parallel()

	variants := []struct {
		name string
		opts guardstack.Options
	}{
		{name: "AllXXH64", opts: guardstack.Options{Checksum: guardstack.ChecksumXXH64}},
		{name: "AllBLAKE3", opts: guardstack.Options{Checksum: guardstack.ChecksumBLAKE3}},
		{name: "NoDataGuard", opts: guardstack.Options{Disable: guardstack.ProtectDataGuard}},
		{name: "NoPoison", opts: guardstack.Options{Disable: guardstack.ProtectPoison}},
		{name: "StructureOnly", opts: guardstack.Options{Disable: guardstack.ProtectAll}},
		{name: "SmallFloor", opts: guardstack.Options{Floor: 1}},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			cfg := testutil.DefaultRunConfig()
			cfg.Options = v.opts
			cfg.Options.ElemSize = testutil.SeedElemSize

			for _, seed := range testutil.CuratedSeeds() {
				testutil.RunBehaviorWithSeed(t, seed.Data, cfg)
			}
		})
	}
}

func FuzzStack_Matches_Model(f *testing.F) {
	for _, seed := range testutil.CuratedSeeds() {
		// Leading byte selects the element size: 3 maps to SeedElemSize.
		f.Add(append([]byte{byte(testutil.SeedElemSize - 1)}, seed.Data...))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) == 0 {
			return
		}

		cfg := testutil.DefaultRunConfig()
		cfg.Options.ElemSize = 1 + int(data[0]%16)

		genCfg := testutil.DefaultOpGenConfig()
		gen := testutil.NewOpGenerator(data[1:], cfg.Options.ElemSize, &genCfg)

		testutil.RunBehavior(t, cfg, gen)
	})
}
