package guardstack_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

func Test_Dump_Lists_Live_And_Poisoned_Slots(t *testing.T) {
	t.Parallel()

	stk := pushed123(t, guardstack.Options{})

	var buf bytes.Buffer
	require.NoError(t, stk.Dump(&buf))

	out := buf.String()

	for _, want := range []string{
		"Stack status is: 0: ok: No error\n",
		"Stack protection is: all (checksum fold)\n",
		"Stack default guard value is:  F072E3546BAD189C\n",
		"Stack size is             3\n",
		"Stack capacity is         10\n",
		"[0]: 0x00000001\n",
		"[2]: 0x00000003\n",
	} {
		require.Contains(t, out, want)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 10)

	for i, line := range lines[len(lines)-7:] {
		require.Truef(t, strings.HasPrefix(line, "("), "slot line %d = %q", i+3, line)
		require.Truef(t, strings.HasSuffix(line, " (poison)"), "slot line %d = %q", i+3, line)
	}
}

func Test_Dump_Shows_Overwritten_Slot_Without_Poison_Marker(t *testing.T) {
	t.Parallel()

	stk := pushed123(t, guardstack.Options{Disable: guardstack.ProtectDataHash})

	raw := guardstack.RawRegion(stk)
	raw[slotByte(stk, 4, 0)] ^= 0xFF

	require.Equal(t, guardstack.StatusPoisonError, stk.Status())

	snap := stk.Snapshot()
	require.Equal(t, guardstack.StatusPoisonError, snap.Status)
	require.True(t, snap.Slots[3].Poisoned)
	require.False(t, snap.Slots[4].Poisoned)
	require.True(t, snap.Slots[5].Poisoned)
	require.Nil(t, snap.DataHash)

	var buf bytes.Buffer
	require.NoError(t, snap.WriteText(&buf))
	require.Contains(t, buf.String(), "Stack status is: 7: poison_overwrite_error:")
}

func Test_Snapshot_Reports_Unreadable_Region_When_Capacity_Corrupt(t *testing.T) {
	t.Parallel()

	stk := pushed123(t, guardstack.Options{})

	guardstack.SetShape(stk, 3, 999)

	snap := stk.Snapshot()
	require.Nil(t, snap.Slots)
	require.Nil(t, snap.DataHash)
	require.Nil(t, snap.DataGuards)
	require.NotNil(t, snap.MetadataHash)
	require.False(t, snap.MetadataHash.Match())

	var buf bytes.Buffer
	require.NoError(t, snap.WriteText(&buf))
	require.Contains(t, buf.String(), "Stack data is unreadable")
}

func Test_Snapshot_Marks_Closed_Stack(t *testing.T) {
	t.Parallel()

	stk, err := guardstack.New(guardstack.Options{ElemSize: 2})
	require.NoError(t, err)
	require.NoError(t, stk.Close())

	snap := stk.Snapshot()
	require.True(t, snap.Closed)
	require.Nil(t, snap.Slots)

	var buf bytes.Buffer
	require.NoError(t, stk.Dump(&buf))
	require.Contains(t, buf.String(), "Stack is closed")
}

func Test_Snapshot_YAML_Carries_Layers_And_Slots(t *testing.T) {
	t.Parallel()

	stk := pushed123(t, guardstack.Options{Checksum: guardstack.ChecksumXXH64})

	out, err := stk.Snapshot().YAML()
	require.NoError(t, err)

	var doc struct {
		Status         string `yaml:"status"`
		Checksum       string `yaml:"checksum"`
		Size           int    `yaml:"size"`
		Capacity       int    `yaml:"capacity"`
		MetadataGuards struct {
			Front string `yaml:"front"`
		} `yaml:"metadata_guards"`
		DataHash struct {
			Stored   string `yaml:"stored"`
			Computed string `yaml:"computed"`
		} `yaml:"data_hash"`
		Slots []struct {
			Index    int    `yaml:"index"`
			Live     bool   `yaml:"live"`
			Hex      string `yaml:"hex"`
			Poisoned bool   `yaml:"poisoned"`
		} `yaml:"slots"`
	}

	require.NoError(t, yaml.Unmarshal(out, &doc))

	require.Equal(t, "ok", doc.Status)
	require.Equal(t, "xxh64", doc.Checksum)
	require.Equal(t, 3, doc.Size)
	require.Equal(t, 10, doc.Capacity)
	require.Equal(t, "0xF072E3546BAD189C", doc.MetadataGuards.Front)
	require.Equal(t, doc.DataHash.Stored, doc.DataHash.Computed)
	require.Len(t, doc.Slots, 10)
	require.Equal(t, "0x00000002", doc.Slots[1].Hex)
	require.True(t, doc.Slots[1].Live)
	require.False(t, doc.Slots[9].Live)
	require.True(t, doc.Slots[9].Poisoned)
}
