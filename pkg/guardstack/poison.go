package guardstack

// poisonSeed is mixed into every fill byte so an all-zero region never
// passes as poisoned.
const poisonSeed = 0xA5

// poisonByte returns the fill byte for absolute offset off within the raw
// region. The value depends on the offset so a stray write can be located,
// not just detected.
func poisonByte(off int) byte {
	return byte(off) ^ byte(off>>8) ^ poisonSeed
}

// writePoison fills buf with the pattern. base is the absolute offset of
// buf[0] within the raw region.
func writePoison(buf []byte, base int) {
	for i := range buf {
		buf[i] = poisonByte(base + i)
	}
}

// firstPoisonMismatch returns the index within buf of the first byte that
// does not hold the pattern, or -1.
func firstPoisonMismatch(buf []byte, base int) int {
	for i, b := range buf {
		if b != poisonByte(base+i) {
			return i
		}
	}

	return -1
}

// isPoisoned reports whether every byte of buf holds the pattern.
func isPoisoned(buf []byte, base int) bool {
	return firstPoisonMismatch(buf, base) < 0
}
