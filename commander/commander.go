// Package commander implements the NAND Commander (§4.C): the
// high-level NAND operations (reset, read-id, read-page, program-page,
// erase-block, read-status), available via two backends that satisfy the
// same contract — a firmware path that bit-bangs the bus driver directly,
// and a hardware path that assembles a cmdprog.Program for an off-board
// sequencer.
package commander

import (
	"context"

	"github.com/tcflash/jiscssd/cmdprog"
)

// Commander is the contract both backends satisfy (§4.C).
type Commander interface {
	// Reset issues a RESET and waits for the chip to come ready. Unlike
	// every other operation here, an R/B timeout during Reset is fatal
	// and is returned as a non-nil error (§7, §9 bullet 4).
	Reset(ctx context.Context, chip int) error

	// ReadID reads n ID bytes from chip.
	ReadID(ctx context.Context, chip, n int) ([]byte, error)

	// ReadPage reads n bytes starting at column col of the given page.
	// A busy-wait timeout is reported as (nil, nil) — a distinct outcome
	// from a completed read with arbitrary contents — not as an error
	// (§4.C, §7).
	ReadPage(ctx context.Context, chip, block, page, col, n int) ([]byte, error)

	// ReadStatus reads the raw status byte (§6).
	ReadStatus(ctx context.Context, chip int) (byte, error)

	// EraseBlock erases block on chip. ok is true iff the busy-wait
	// succeeded and the subsequent status read's PROGRAM/ERASE FAIL bit
	// is clear (§4.C). A non-nil error indicates a lower-level I/O fault,
	// not a NAND-reported failure.
	EraseBlock(ctx context.Context, chip, block int) (ok bool, err error)

	// ProgramPage programs data (at column col) into the given page. Same
	// ok/err split as EraseBlock.
	ProgramPage(ctx context.Context, chip, block, page, col int, data []byte) (ok bool, err error)
}

// Status decodes the five named status-register bits (§6, §9 bullet 2 —
// the original source decomposes these beyond the single PROGRAM/ERASE
// FAIL bit the pass/fail contract above relies on).
type Status struct {
	ProgramEraseFail bool
	CacheProgFail    bool
	PageBufferReady  bool
	DataCacheReady   bool
	WPDisabled       bool
}

// DecodeStatus decomposes a raw status byte into its named bits.
func DecodeStatus(b byte) Status {
	return Status{
		ProgramEraseFail: b&cmdprog.STATUS_PROGRAM_ERASE_FAIL != 0,
		CacheProgFail:    b&cmdprog.STATUS_CACHE_PROG_FAIL != 0,
		PageBufferReady:  b&cmdprog.STATUS_PAGE_BUFFER_READY != 0,
		DataCacheReady:   b&cmdprog.STATUS_DATA_CACHE_READY != 0,
		WPDisabled:       b&cmdprog.STATUS_WP_DISABLED != 0,
	}
}

// OK reports whether the status indicates a successful program/erase
// (the only bit that contract cares about, per §4.C).
func (s Status) OK() bool {
	return !s.ProgramEraseFail
}
