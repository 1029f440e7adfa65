package guardstack

import "encoding/binary"

// guardValue is the sentinel stored in every guard word.
const guardValue uint64 = 0xF072E3546BAD189C

// guardSize is the width in bytes of a data guard word.
const guardSize = 8

// readGuard decodes the guard word at off.
func readGuard(raw []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(raw[off : off+guardSize])
}

// writeGuard stores guardValue at off.
func writeGuard(raw []byte, off int) {
	binary.LittleEndian.PutUint64(raw[off:off+guardSize], guardValue)
}
