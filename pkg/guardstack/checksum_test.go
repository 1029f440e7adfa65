package guardstack_test

import (
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

func Test_SumBytes_Fold_Matches_Known_Values(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		data []byte
		want uint64
	}{
		{data: nil, want: 0x600D4A54},
		{data: []byte{1}, want: 0xC01A94A9},
		{data: []byte("abc"), want: 0x3006A5383},
	}

	for _, testCase := range testCases {
		got := guardstack.SumBytes(guardstack.ChecksumFold, testCase.data)
		if got != testCase.want {
			t.Fatalf("fold(%q)=%#x, want=%#x", testCase.data, got, testCase.want)
		}
	}
}

func Test_SumWords_Fold_Is_Order_Sensitive(t *testing.T) {
	t.Parallel()

	got := guardstack.SumWords(guardstack.ChecksumFold, 1, 2)
	if got != 0x180352950 {
		t.Fatalf("fold(1, 2)=%#x, want=%#x", got, uint64(0x180352950))
	}

	if swapped := guardstack.SumWords(guardstack.ChecksumFold, 2, 1); swapped == got {
		t.Fatalf("fold(2, 1)=%#x equals fold(1, 2)", swapped)
	}
}

func Test_SumBytes_Uses_Library_Digests_When_Selected(t *testing.T) {
	t.Parallel()

	data := []byte("guardstack")

	if got, want := guardstack.SumBytes(guardstack.ChecksumXXH64, data), xxhash.Sum64(data); got != want {
		t.Fatalf("xxh64=%#x, want=%#x", got, want)
	}

	if got, want := guardstack.SumBytes(guardstack.ChecksumXXH64, nil), uint64(0xEF46DB3751D8E999); got != want {
		t.Fatalf("xxh64(empty)=%#x, want=%#x", got, want)
	}

	// BLAKE3("") = af1349b9f5f9a1a6..., read little-endian.
	if got, want := guardstack.SumBytes(guardstack.ChecksumBLAKE3, nil), uint64(0xA6A1F9F5B94913AF); got != want {
		t.Fatalf("blake3(empty)=%#x, want=%#x", got, want)
	}
}

func Test_SumWords_Hashes_Little_Endian_Encoding_When_Not_Fold(t *testing.T) {
	t.Parallel()

	encoded := []byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}

	for _, checksum := range []guardstack.Checksum{guardstack.ChecksumXXH64, guardstack.ChecksumBLAKE3} {
		got := guardstack.SumWords(checksum, 1, 2)
		want := guardstack.SumBytes(checksum, encoded)

		if got != want {
			t.Fatalf("%v: words=%#x bytes=%#x", checksum, got, want)
		}
	}
}

func Test_ParseChecksum_Accepts_Names_And_Rejects_Unknown(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want guardstack.Checksum
	}{
		{in: "", want: guardstack.ChecksumFold},
		{in: "fold", want: guardstack.ChecksumFold},
		{in: " XXH64 ", want: guardstack.ChecksumXXH64},
		{in: "blake3", want: guardstack.ChecksumBLAKE3},
	}

	for _, testCase := range testCases {
		got, err := guardstack.ParseChecksum(testCase.in)
		if err != nil || got != testCase.want {
			t.Fatalf("ParseChecksum(%q)=(%v, %v), want=(%v, nil)", testCase.in, got, err, testCase.want)
		}

		if roundTrip, _ := guardstack.ParseChecksum(got.String()); roundTrip != got {
			t.Fatalf("ParseChecksum(%q)=%v", got.String(), roundTrip)
		}
	}

	_, err := guardstack.ParseChecksum("crc32")
	if !errors.Is(err, guardstack.ErrInvalidInput) {
		t.Fatalf("ParseChecksum(crc32) error: got=%v want=%v", err, guardstack.ErrInvalidInput)
	}
}
