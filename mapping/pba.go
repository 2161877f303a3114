package mapping

// PBA is a Physical Block Address: an injective, stable encoding of
// (chip, block, page, sector) into one integer (§3).
type PBA uint64

const (
	sectorBits = 2 // SECTORS_PER_PAGE = 4
	pageBits   = 6 // PAGES_PER_BLOCK = 64
	blockBits  = 10
)

// NewPBA packs (chip, block, page, sector) into a PBA. The layout is an
// implementation detail; callers only rely on NewPBA and PBA.Decompose
// being mutual inverses.
func NewPBA(chip, block, page, sector int) PBA {
	v := uint64(sector&(1<<sectorBits-1)) |
		uint64(page&(1<<pageBits-1))<<sectorBits |
		uint64(block&(1<<blockBits-1))<<(sectorBits+pageBits) |
		uint64(chip)<<(sectorBits+pageBits+blockBits)
	return PBA(v)
}

// Decompose recovers (chip, block, page, sector) from a PBA.
func (p PBA) Decompose() (chip, block, page, sector int) {
	v := uint64(p)
	sector = int(v & (1<<sectorBits - 1))
	v >>= sectorBits
	page = int(v & (1<<pageBits - 1))
	v >>= pageBits
	block = int(v & (1<<blockBits - 1))
	v >>= blockBits
	chip = int(v)
	return chip, block, page, sector
}
