package ftl

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcflash/jiscssd/blockmgr"
	"github.com/tcflash/jiscssd/geometry"
	"github.com/tcflash/jiscssd/mapping"
	"github.com/tcflash/jiscssd/pagecodec"
)

// fakeCommander is a minimal commander.Commander double backed by an
// in-memory page store, enough to drive the FTL's write/read paths
// end-to-end without real hardware.
type fakeCommander struct {
	pages           map[[3]int][]byte // [chip,block,page] -> PAGE_ALL_BYTES
	failNextProgram bool
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{pages: map[[3]int][]byte{}}
}

func (f *fakeCommander) Reset(ctx context.Context, chip int) error { return nil }

func (f *fakeCommander) ReadID(ctx context.Context, chip, n int) ([]byte, error) {
	id := make([]byte, n)
	copy(id, geometry.EXPECTED_ID[:])
	return id, nil
}

func (f *fakeCommander) ReadPage(ctx context.Context, chip, block, page, col, n int) ([]byte, error) {
	if page == 0 && col == 0 && n == 1 {
		return []byte{0xFF}, nil // no factory bad blocks in this fake
	}
	full, ok := f.pages[[3]int{chip, block, page}]
	if !ok {
		full = make([]byte, geometry.PAGE_ALL_BYTES)
		for i := range full {
			full[i] = 0xFF
		}
	}
	end := col + n
	if end > len(full) {
		end = len(full)
	}
	return full[col:end], nil
}

func (f *fakeCommander) ReadStatus(ctx context.Context, chip int) (byte, error) { return 0, nil }

func (f *fakeCommander) EraseBlock(ctx context.Context, chip, block int) (bool, error) {
	for page := 0; page < geometry.PAGES_PER_BLOCK; page++ {
		delete(f.pages, [3]int{chip, block, page})
	}
	return true, nil
}

func (f *fakeCommander) ProgramPage(ctx context.Context, chip, block, page, col int, data []byte) (bool, error) {
	if f.failNextProgram {
		f.failNextProgram = false
		return false, nil
	}
	key := [3]int{chip, block, page}
	full, ok := f.pages[key]
	if !ok {
		full = make([]byte, geometry.PAGE_ALL_BYTES)
	}
	copy(full[col:], data)
	f.pages[key] = full
	return true, nil
}

func newTestFTL(t *testing.T) (*FTL, *fakeCommander) {
	t.Helper()
	cmd := newFakeCommander()
	blocks := blockmgr.New(cmd)
	require.NoError(t, blocks.Init(context.Background()))
	codec := pagecodec.New(pagecodec.Config{})
	return New(blocks, codec, &mapping.Table{}), cmd
}

func sectorFilled(b byte) []byte {
	s := make([]byte, geometry.SECTOR_BYTES)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestReadLogicalUnmappedReturnsZeroSector(t *testing.T) {
	f, _ := newTestFTL(t)
	out := f.ReadLogical(context.Background(), 42)
	assert.Equal(t, make([]byte, geometry.SECTOR_BYTES), out)
}

func TestWriteLogicalThenReadFromWriteBuffer(t *testing.T) {
	f, _ := newTestFTL(t)
	data := sectorFilled(0xAB)

	ok, err := f.WriteLogical(context.Background(), 7, data)
	require.NoError(t, err)
	assert.True(t, ok)

	got := f.ReadLogical(context.Background(), 7)
	assert.True(t, bytes.Equal(data, got), "a still-buffered sector must be served from the write buffer")
}

func TestWriteLogicalCommitsPageAfterFourSectors(t *testing.T) {
	f, _ := newTestFTL(t)
	ctx := context.Background()

	for i := 0; i < geometry.SECTORS_PER_PAGE; i++ {
		data := sectorFilled(byte(i))
		ok, err := f.WriteLogical(ctx, mapping.LBA(i), data)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// The page is now committed to NAND; reading should resolve through
	// the mapping table and page codec rather than the (now-reset) write
	// buffer.
	for i := 0; i < geometry.SECTORS_PER_PAGE; i++ {
		got := f.ReadLogical(ctx, mapping.LBA(i))
		assert.Equal(t, sectorFilled(byte(i)), got)
	}
}

func TestWriteLogicalFlushesOnWriteCountNotDistinctLBACount(t *testing.T) {
	f, _ := newTestFTL(t)
	ctx := context.Background()

	// Overwrite LBA 5 twice, then fill out the rest of the page. The page
	// must still flush after exactly SECTORS_PER_PAGE writes even though
	// only SECTORS_PER_PAGE-1 distinct LBAs were ever touched.
	lbas := []mapping.LBA{5, 5, 6, 7, 8}
	for i, lba := range lbas {
		ok, err := f.WriteLogical(ctx, lba, sectorFilled(byte(i)))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, 1, f.wp.page, "five writes must flush one page and start a second")
	assert.Equal(t, 1, f.wp.sector)

	// LBA 5's buffered copy was the second write (index 1); the first
	// write's slot was superseded before the page ever flushed.
	assert.Equal(t, sectorFilled(1), f.ReadLogical(ctx, mapping.LBA(5)))
	assert.Equal(t, sectorFilled(4), f.ReadLogical(ctx, mapping.LBA(8)))
}

func TestWriteLogicalRejectsWrongSizedSector(t *testing.T) {
	f, _ := newTestFTL(t)
	_, err := f.WriteLogical(context.Background(), 0, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestWriteLogicalAdvancesAcrossMultiplePages(t *testing.T) {
	f, _ := newTestFTL(t)
	ctx := context.Background()

	total := geometry.SECTORS_PER_PAGE*2 + 1
	for i := 0; i < total; i++ {
		ok, err := f.WriteLogical(ctx, mapping.LBA(i), sectorFilled(byte(i)))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, f.wp.page, "two full pages committed, third in progress")
	assert.Equal(t, 1, f.wp.sector)

	for i := 0; i < total; i++ {
		got := f.ReadLogical(ctx, mapping.LBA(i))
		assert.Equal(t, sectorFilled(byte(i)), got)
	}
}

func TestWriteLogicalProgramFailureDoesNotMapToFailedPage(t *testing.T) {
	f, cmd := newTestFTL(t)
	ctx := context.Background()

	cmd.failNextProgram = true
	var lastOK bool
	for i := 0; i < geometry.SECTORS_PER_PAGE; i++ {
		ok, err := f.WriteLogical(ctx, mapping.LBA(i), sectorFilled(byte(i)))
		require.NoError(t, err)
		lastOK = ok
	}
	assert.False(t, lastOK, "the commander rejected the page program")

	// Pre-commit-on-success (§9 bullet 1): a failed program must not leave
	// the mapping pointing at a page that was never actually written.
	_, resolved := f.table.Resolve(mapping.LBA(0))
	assert.False(t, resolved, "mapping must not point at the failed page")
	assert.Equal(t, make([]byte, geometry.SECTOR_BYTES), f.ReadLogical(ctx, mapping.LBA(0)))
}

func TestDumpIncludesWritePointerState(t *testing.T) {
	f, _ := newTestFTL(t)
	_, err := f.WriteLogical(context.Background(), 1, sectorFilled(0x11))
	require.NoError(t, err)
	assert.Contains(t, f.Dump(), "chip")
}
