package guardstack

import (
	"fmt"
	"strings"
)

// Protection is a set of integrity layers.
type Protection uint8

// Protection layers. Each one maps to a specific corruption [Status].
const (
	// ProtectMetadataGuard places guard words before and after the mutable
	// control fields.
	ProtectMetadataGuard Protection = 1 << iota

	// ProtectDataGuard places guard words immediately outside the element
	// range of the data region.
	ProtectDataGuard

	// ProtectMetadataHash keeps a checksum over the region address, element
	// size, logical size and capacity.
	ProtectMetadataHash

	// ProtectDataHash keeps a checksum over the whole data region.
	// Requires ProtectMetadataHash.
	ProtectDataHash

	// ProtectPoison fills unused slots with a deterministic, offset-dependent
	// byte pattern.
	ProtectPoison

	// ProtectNone is the empty set.
	ProtectNone Protection = 0

	// ProtectAll enables every layer.
	ProtectAll = ProtectMetadataGuard | ProtectDataGuard | ProtectMetadataHash | ProtectDataHash | ProtectPoison
)

var protectionNames = []struct {
	layer Protection
	name  string
}{
	{ProtectMetadataGuard, "metaguard"},
	{ProtectDataGuard, "dataguard"},
	{ProtectMetadataHash, "metahash"},
	{ProtectDataHash, "datahash"},
	{ProtectPoison, "poison"},
}

// Has reports whether every layer in other is in p.
func (p Protection) Has(other Protection) bool {
	return p&other == other
}

// normalize drops layers whose prerequisites are missing.
func (p Protection) normalize() Protection {
	p &= ProtectAll
	if !p.Has(ProtectMetadataHash) {
		p &^= ProtectDataHash
	}

	return p
}

// String returns the comma-separated layer names, "all", or "none".
func (p Protection) String() string {
	switch p & ProtectAll {
	case ProtectNone:
		return "none"
	case ProtectAll:
		return "all"
	}

	var names []string

	for _, entry := range protectionNames {
		if p.Has(entry.layer) {
			names = append(names, entry.name)
		}
	}

	return strings.Join(names, ",")
}

// ParseProtection parses a comma-separated list of layer names.
//
// Accepted names: metaguard, dataguard, metahash, datahash, poison, all,
// none. Whitespace around names is ignored and the empty string is
// ProtectNone.
func ParseProtection(s string) (Protection, error) {
	var p Protection

	for raw := range strings.SplitSeq(s, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))

		switch name {
		case "", "none":
			continue
		case "all":
			p |= ProtectAll

			continue
		}

		found := false

		for _, entry := range protectionNames {
			if entry.name == name {
				p |= entry.layer
				found = true

				break
			}
		}

		if !found {
			return ProtectNone, fmt.Errorf("unknown protection layer %q: %w", raw, ErrInvalidInput)
		}
	}

	return p, nil
}
