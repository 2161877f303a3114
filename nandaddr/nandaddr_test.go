package nandaddr

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFullByteLayout(t *testing.T) {
	// §8: byte0 = C&0xFF; byte1 = (C>>8)&0x0F; byte2 = (P&0x3F)|((B&0x03)<<6); byte3 = (B>>2)&0xFF.
	addr := EncodeFull(256, 2, 3)
	assert.Equal(t, [4]byte{0x00, 0x01, 0xC2, 0x00}, addr, "§8 end-to-end scenario 6 wire trace")
}

func TestEncodeDecodeFullRoundTrips(t *testing.T) {
	f := func(c, p, b uint16) bool {
		column := uint32(c) % (columnMask + 1)
		page := uint32(p) % (pageMask + 1)
		block := uint32(b) % (blockMask + 1)

		addr := EncodeFull(column, page, block)
		gc, gp, gb := DecodeFull(addr)
		return gc == column && gp == page && gb == block
	}
	assert.NoError(t, quick.Check(f, nil))
}

func TestEncodeBlockLittleEndian(t *testing.T) {
	addr := EncodeBlock(3)
	assert.Equal(t, [2]byte{0x03, 0x00}, addr)
	assert.Equal(t, uint32(3), DecodeBlock(addr))
}

func TestEncodeFullTruncatesOutOfRange(t *testing.T) {
	addr := EncodeFull(0x1FFF, 0xFF, 0x7FF)
	column, page, block := DecodeFull(addr)
	assert.Equal(t, uint32(0x1FFF&columnMask), column)
	assert.Equal(t, uint32(0xFF&pageMask), page)
	assert.Equal(t, uint32(0x7FF&blockMask), block)
}

func TestEncodeFullStrictRejectsOutOfRange(t *testing.T) {
	_, err := EncodeFullStrict(1<<columnBits, 0, 0)
	assert.Error(t, err)

	_, err = EncodeFullStrict(0, 0, 1<<blockBits)
	assert.Error(t, err)

	addr, err := EncodeFullStrict(256, 2, 3)
	assert.NoError(t, err)
	assert.Equal(t, [4]byte{0x00, 0x01, 0xC2, 0x00}, addr)
}

func TestEncodeBlockStrictRejectsOutOfRange(t *testing.T) {
	_, err := EncodeBlockStrict(1 << blockBits)
	assert.Error(t, err)
}
