// Package ftl implements the Flash Translation Layer (§4.H): a
// page-buffered, append-only write path over the block manager, page
// codec, and mapping table, plus the corresponding read path.
package ftl

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/tcflash/jiscssd/blockmgr"
	"github.com/tcflash/jiscssd/geometry"
	"github.com/tcflash/jiscssd/mapping"
	"github.com/tcflash/jiscssd/pagecodec"
)

// writePointer tracks the block currently being filled by sequential
// page-buffered writes. Unset (chip/block undefined) until the first
// write_logical call after construction or after a block fills up.
type writePointer struct {
	set    bool
	chip   int
	block  int
	page   int
	sector int
}

// writeBuffer accumulates up to SECTORS_PER_PAGE sectors before they are
// committed to NAND as one page program. lbas is the ordered
// write_buffer_lbas list from §3: it gets one append per write (even a
// repeat write of an already-buffered LBA), so its length — not the
// count of distinct LBAs in slotOf — is what determines when the page
// is full. pending holds the PBA each buffered LBA would resolve to
// once that program succeeds; the mapping table itself is left
// untouched until then, so a failed program never leaves the mapping
// pointing at a page that was never written (§9 bullet 1 — implemented
// as pre-commit-on-success rather than reproducing the source's
// dangling-mapping bug).
type writeBuffer struct {
	sectors [geometry.SECTORS_PER_PAGE][]byte
	slotOf  map[mapping.LBA]int
	lbas    []mapping.LBA
	pending map[mapping.LBA]mapping.PBA
}

func newWriteBuffer() writeBuffer {
	return writeBuffer{slotOf: make(map[mapping.LBA]int), pending: make(map[mapping.LBA]mapping.PBA)}
}

func (wb *writeBuffer) reset() {
	for i := range wb.sectors {
		wb.sectors[i] = nil
	}
	wb.slotOf = make(map[mapping.LBA]int)
	wb.lbas = nil
	wb.pending = make(map[mapping.LBA]mapping.PBA)
}

// FTL wires the block manager, page codec, and mapping table into the
// read_logical/write_logical operations surface (§4.H).
type FTL struct {
	blocks *blockmgr.Manager
	codec  *pagecodec.Codec
	table  *mapping.Table

	wp  writePointer
	buf writeBuffer
}

// New returns an FTL over the given block manager, page codec, and
// mapping table. table may be freshly zero-valued; blocks must already
// have had Init called.
func New(blocks *blockmgr.Manager, codec *pagecodec.Codec, table *mapping.Table) *FTL {
	return &FTL{
		blocks: blocks,
		codec:  codec,
		table:  table,
		buf:    newWriteBuffer(),
	}
}

// WriteLogical writes one SECTOR_BYTES-sized sector at lba, per the
// page-buffered algorithm in §4.H. The returned bool is the program
// result: false only when the NAND itself rejected the program. The
// mapping table is updated only after a successful program, so a failed
// program leaves the buffered LBAs' previous mappings in place.
func (f *FTL) WriteLogical(ctx context.Context, lba mapping.LBA, data []byte) (bool, error) {
	if len(data) != geometry.SECTOR_BYTES {
		return false, fmt.Errorf("ftl: write_logical lba %d: data is %d bytes, want %d", lba, len(data), geometry.SECTOR_BYTES)
	}

	if !f.wp.set {
		chip, block, err := f.blocks.Alloc(ctx)
		if err != nil {
			return false, fmt.Errorf("ftl: write_logical lba %d: %w", lba, err)
		}
		f.wp = writePointer{set: true, chip: chip, block: block, page: 0, sector: 0}
		f.buf.reset()
	}

	pba := mapping.NewPBA(f.wp.chip, f.wp.block, f.wp.page, f.wp.sector)
	f.buf.pending[lba] = pba

	f.buf.sectors[f.wp.sector] = append([]byte(nil), data...)
	f.buf.slotOf[lba] = f.wp.sector
	f.buf.lbas = append(f.buf.lbas, lba)

	if len(f.buf.lbas) < geometry.SECTORS_PER_PAGE {
		f.wp.sector++
		return true, nil
	}

	ok, err := f.commitPage(ctx)
	if err != nil {
		return false, fmt.Errorf("ftl: write_logical lba %d: %w", lba, err)
	}
	return ok, nil
}

// commitPage page-encodes the accumulated write buffer, programs it, and
// advances the write pointer, retiring it once the block is full.
func (f *FTL) commitPage(ctx context.Context) (bool, error) {
	payload := make([]byte, 0, geometry.PAGE_USABLE_BYTES)
	for _, s := range f.buf.sectors {
		payload = append(payload, s...)
	}

	raw, err := f.codec.Encode(payload)
	if err != nil {
		return false, err
	}

	ok, err := f.blocks.Program(ctx, f.wp.chip, f.wp.block, f.wp.page, 0, raw)
	if err != nil {
		return false, err
	}
	if ok {
		for lba, pba := range f.buf.pending {
			f.table.Update(lba, pba)
		}
	}

	f.buf.reset()
	f.wp.sector = 0
	f.wp.page++
	if f.wp.page == geometry.PAGES_PER_BLOCK {
		f.wp = writePointer{}
	}
	return ok, nil
}

// unmappedSector is returned for an unmapped LBA or an unrecoverable
// read (§4.H).
func unmappedSector() []byte {
	return make([]byte, geometry.SECTOR_BYTES)
}

// ReadLogical reads the sector at lba, per §4.H's read path: serve from
// the write buffer if still resident, else resolve and read from NAND.
func (f *FTL) ReadLogical(ctx context.Context, lba mapping.LBA) []byte {
	if slot, ok := f.buf.slotOf[lba]; ok {
		out := make([]byte, geometry.SECTOR_BYTES)
		copy(out, f.buf.sectors[slot])
		return out
	}

	pba, ok := f.table.Resolve(lba)
	if !ok {
		return unmappedSector()
	}
	chip, block, page, sector := pba.Decompose()

	raw, err := f.blocks.Read(ctx, chip, block, page, 0, geometry.PAGE_ALL_BYTES)
	if err != nil {
		return unmappedSector()
	}
	payload, ok := f.codec.Decode(raw)
	if !ok {
		return unmappedSector()
	}

	off := sector * geometry.SECTOR_BYTES
	if off+geometry.SECTOR_BYTES > len(payload) {
		return unmappedSector()
	}
	out := make([]byte, geometry.SECTOR_BYTES)
	copy(out, payload[off:off+geometry.SECTOR_BYTES])
	return out
}

// Dump renders the FTL's write-path state for diagnostics.
func (f *FTL) Dump() string {
	return spew.Sdump(f.wp, f.buf.lbas, f.buf.slotOf)
}
