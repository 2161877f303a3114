// Package nandaddr encodes the (column, page, block) address triples
// the NAND expects onto its 4-byte (full) and 2-byte (block-only) wire
// address cycles (§4.D, §6).
package nandaddr

import "fmt"

const (
	columnBits = 12
	blockBits  = 10
	columnMask = (1 << columnBits) - 1
	blockMask  = (1 << blockBits) - 1
	pageMask   = 0x3F // 6 bits: PAGES_PER_BLOCK=64
)

// EncodeFull packs column, page and block into the 4-byte address phase:
//
//	cycle 1: CA[7:0]
//	cycle 2: 0000 CA[11:8]
//	cycle 3: PA[5:0] | block[1:0]<<6
//	cycle 4: block[9:2]
//
// Out-of-range inputs are silently masked to their field width (§4.D,
// §9's truncation note); use EncodeFullStrict to reject them instead.
func EncodeFull(column, page, block uint32) [4]byte {
	c := column & columnMask
	p := page & pageMask
	b := block & blockMask

	return [4]byte{
		byte(c & 0xFF),
		byte((c >> 8) & 0x0F),
		byte(p) | byte((b&0x03)<<6),
		byte(b >> 2),
	}
}

// EncodeFullStrict is EncodeFull but returns an error instead of
// truncating when column, page, or block is out of range (§9, stricter
// validation variant).
func EncodeFullStrict(column, page, block uint32) ([4]byte, error) {
	if column > columnMask {
		return [4]byte{}, fmt.Errorf("nandaddr: column %d exceeds %d-bit field", column, columnBits)
	}
	if page > pageMask {
		return [4]byte{}, fmt.Errorf("nandaddr: page %d exceeds 6-bit field", page)
	}
	if block > blockMask {
		return [4]byte{}, fmt.Errorf("nandaddr: block %d exceeds %d-bit field", block, blockBits)
	}
	return EncodeFull(column, page, block), nil
}

// EncodeBlock packs a block-only address into 2 bytes, little-endian
// (used by erase, which addresses a whole block with no column/page).
func EncodeBlock(block uint32) [2]byte {
	b := block & blockMask
	return [2]byte{byte(b & 0xFF), byte(b >> 8)}
}

// EncodeBlockStrict is EncodeBlock but rejects an out-of-range block.
func EncodeBlockStrict(block uint32) ([2]byte, error) {
	if block > blockMask {
		return [2]byte{}, fmt.Errorf("nandaddr: block %d exceeds %d-bit field", block, blockBits)
	}
	return EncodeBlock(block), nil
}

// DecodeFull is the inverse of EncodeFull, recovering (column, page,
// block) from a 4-byte address phase. It is exact for any address that
// EncodeFull produced from in-range inputs.
func DecodeFull(addr [4]byte) (column, page, block uint32) {
	column = uint32(addr[0]) | (uint32(addr[1]&0x0F) << 8)
	page = uint32(addr[2] & pageMask)
	block = uint32(addr[2]>>6) | (uint32(addr[3]) << 2)
	return column, page, block
}

// DecodeBlock is the inverse of EncodeBlock.
func DecodeBlock(addr [2]byte) uint32 {
	return uint32(addr[0]) | (uint32(addr[1]) << 8)
}
