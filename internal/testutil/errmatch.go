package testutil

import (
	"errors"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// Sentinels are the error classes a stack operation can fail with, most
// specific first. Corruption classes wrap ErrCorrupt and must precede it.
var Sentinels = []error{
	guardstack.ErrMetadataGuard,
	guardstack.ErrDataGuard,
	guardstack.ErrMetadataHash,
	guardstack.ErrDataHash,
	guardstack.ErrPoisonOverwrite,
	guardstack.ErrCorrupt,
	guardstack.ErrAllocation,
	guardstack.ErrEmpty,
	guardstack.ErrInvalidInput,
	guardstack.ErrClosed,
}

// ClassifyError returns the first sentinel err matches.
// Returns nil if err is nil or matches none.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range Sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	return nil
}

// SameErrorClass reports whether both errors fall into the same sentinel
// class. Two nil errors match; an unclassified error matches nothing.
func SameErrorClass(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ca := ClassifyError(a)

	return ca != nil && ca == ClassifyError(b)
}
