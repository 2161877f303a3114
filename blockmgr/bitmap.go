package blockmgr

import (
	"math/big"

	"github.com/tcflash/jiscssd/geometry"
)

// bitmap is a fixed-size, one-bit-per-block array sized for
// geometry.BLOCKS_PER_CHIP blocks (128 bytes at 1024 blocks/chip). Kept as a
// fixed array rather than math/big.Int internally (§9: "use fixed-size bit
// arrays, not arbitrary-precision integers"); big.Int is used only at the
// serialization boundary, where the persisted schema calls for a decimal
// integer.
type bitmap [geometry.BLOCKS_PER_CHIP / 8]byte

func (bm *bitmap) set(i int)   { bm[i/8] |= 1 << uint(i%8) }
func (bm *bitmap) clear(i int) { bm[i/8] &^= 1 << uint(i%8) }
func (bm *bitmap) test(i int) bool {
	return bm[i/8]&(1<<uint(i%8)) != 0
}

// toBigInt renders the bitmap as the decimal integer the persisted schema
// expects, bit i of the integer corresponding to block i.
func (bm bitmap) toBigInt() *big.Int {
	n := new(big.Int)
	for i := 0; i < geometry.BLOCKS_PER_CHIP; i++ {
		if bm.test(i) {
			n.SetBit(n, i, 1)
		}
	}
	return n
}

// bitmapFromBigInt is toBigInt's inverse.
func bitmapFromBigInt(n *big.Int) bitmap {
	var bm bitmap
	if n == nil {
		return bm
	}
	for i := 0; i < geometry.BLOCKS_PER_CHIP; i++ {
		if n.Bit(i) == 1 {
			bm.set(i)
		}
	}
	return bm
}
