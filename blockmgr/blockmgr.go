// Package blockmgr implements the Block Manager (§4.E): per-chip bad- and
// allocated-block bitmaps, erase-on-allocate with bad-block promotion, and
// (de)serialization of its own state.
package blockmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcflash/jiscssd/commander"
	"github.com/tcflash/jiscssd/geometry"
)

// ErrNoActiveChip is returned by Init when READ-ID fails to match the
// expected ID on every probed chip.
var ErrNoActiveChip = errors.New("blockmgr: no active chip found")

// ErrNoFreeBlock is returned by Alloc when every chip's scan is exhausted
// without finding a free, non-bad block.
var ErrNoFreeBlock = errors.New("blockmgr: no free block available")

// Manager tracks per-chip bad/allocated block bitmaps and drives
// allocation and bad-block promotion against a Commander.
type Manager struct {
	cmd commander.Commander

	numChip   int
	bad       [geometry.MAX_CHIPS]bitmap
	allocated [geometry.MAX_CHIPS]bitmap
	scanned   [geometry.MAX_CHIPS]bool
}

// New returns a Manager with no chips yet discovered; call Init before any
// other method.
func New(cmd commander.Commander) *Manager {
	return &Manager{cmd: cmd}
}

// NumChip reports the number of active chips discovered by Init.
func (m *Manager) NumChip() int { return m.numChip }

// Init discovers active chips (if not already known) and scans any
// not-yet-scanned chip's blocks for factory bad-block markers (§4.E).
//
// Discovery resets each chip before probing READ-ID, since a chip left
// mid-operation by a prior run cannot otherwise be trusted to answer
// READ-ID meaningfully.
func (m *Manager) Init(ctx context.Context) error {
	if m.numChip == 0 {
		n, err := m.discoverChips(ctx)
		if err != nil {
			return err
		}
		m.numChip = n
	}
	if m.numChip == 0 {
		return ErrNoActiveChip
	}

	for c := 0; c < m.numChip; c++ {
		if m.scanned[c] {
			continue
		}
		if err := m.scanBadBlocks(ctx, c); err != nil {
			return fmt.Errorf("blockmgr: scan chip %d: %w", c, err)
		}
		m.allocated[c] = m.bad[c]
		m.scanned[c] = true
	}
	return nil
}

func (m *Manager) discoverChips(ctx context.Context) (int, error) {
	n := 0
	for c := 0; c < geometry.MAX_CHIPS; c++ {
		if err := m.cmd.Reset(ctx, c); err != nil {
			break
		}
		id, err := m.cmd.ReadID(ctx, c, len(geometry.EXPECTED_ID))
		if err != nil || !idMatches(id) {
			break
		}
		n++
	}
	return n, nil
}

func idMatches(id []byte) bool {
	if len(id) != len(geometry.EXPECTED_ID) {
		return false
	}
	for i, b := range geometry.EXPECTED_ID {
		if id[i] != b {
			return false
		}
	}
	return true
}

// scanBadBlocks inspects only byte 0 of page 0 of each block, following
// this part's factory-marking convention: any value other than 0xFF, or
// an empty read (a busy-wait timeout), marks the block bad.
func (m *Manager) scanBadBlocks(ctx context.Context, chip int) error {
	for block := 0; block < geometry.BLOCKS_PER_CHIP; block++ {
		marker, err := m.cmd.ReadPage(ctx, chip, block, 0, 0, 1)
		if err != nil {
			return err
		}
		if len(marker) == 0 || marker[0] != 0xFF {
			m.bad[chip].set(block)
		}
	}
	return nil
}

// Alloc scans chips and blocks in index order for the first block that is
// neither allocated nor bad, erases it, and marks it allocated. A block
// whose erase fails is marked bad (hence allocated-reserved) and the scan
// retries from where it left off (§4.E).
func (m *Manager) Alloc(ctx context.Context) (chip, block int, err error) {
	for c := 0; c < m.numChip; c++ {
		for b := 0; b < geometry.BLOCKS_PER_CHIP; b++ {
			if m.allocated[c].test(b) || m.bad[c].test(b) {
				continue
			}
			ok, err := m.cmd.EraseBlock(ctx, c, b)
			if err != nil {
				return 0, 0, fmt.Errorf("blockmgr: erase chip %d block %d: %w", c, b, err)
			}
			if !ok {
				m.bad[c].set(b)
				m.allocated[c].set(b)
				continue
			}
			m.allocated[c].set(b)
			return c, b, nil
		}
	}
	return 0, 0, ErrNoFreeBlock
}

// Free clears block's allocated bit. Freeing a block that was not
// allocated is an invariant violation, not a recoverable condition.
func (m *Manager) Free(chip, block int) {
	if !m.allocated[chip].test(block) {
		panic(fmt.Sprintf("blockmgr: free chip %d block %d: already free", chip, block))
	}
	m.allocated[chip].clear(block)
}

// Read is a thin pass-through to the commander (§4.E).
func (m *Manager) Read(ctx context.Context, chip, block, page, col, n int) ([]byte, error) {
	return m.cmd.ReadPage(ctx, chip, block, page, col, n)
}

// Program is a thin pass-through to the commander (§4.E).
func (m *Manager) Program(ctx context.Context, chip, block, page, col int, data []byte) (bool, error) {
	return m.cmd.ProgramPage(ctx, chip, block, page, col, data)
}
