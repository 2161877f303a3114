package blockmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/tcflash/jiscssd/commander"
	"github.com/tcflash/jiscssd/geometry"
)

// DEFAULT_STATE_PATH is the reserved persistence path named in §4.E/§6.
const DEFAULT_STATE_PATH = "nand_block_allocator.json"

// Open loads a Manager's state from path, falling back to full
// rediscovery (New + Init) when the state cannot be loaded — the
// PersistenceError policy of §7, matching the original source's
// try-load/except-OSError-init boot sequence. A freshly rediscovered
// Manager is saved back to path so the next Open finds it. Either way,
// Init is run before returning, so a loaded chip that was never fully
// scanned still gets its bad-block scan.
func Open(ctx context.Context, cmd commander.Commander, path string) (*Manager, error) {
	m, loadErr := Load(cmd, path)
	if loadErr != nil {
		m = New(cmd)
		if err := m.Init(ctx); err != nil {
			return nil, err
		}
		if err := m.Save(path); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// record is the self-describing on-disk schema from §4.E: a decimal
// integer per chip whose bit i is set iff block i is bad/allocated.
type record struct {
	NumChip          int        `json:"num_chip"`
	BadblockBitmaps  []*big.Int `json:"badblock_bitmaps"`
	AllocatedBitmaps []*big.Int `json:"allocated_bitmaps"`
}

// Save writes m's state to path as the §4.E schema.
func (m *Manager) Save(path string) error {
	rec := record{
		NumChip:          m.numChip,
		BadblockBitmaps:  make([]*big.Int, geometry.MAX_CHIPS),
		AllocatedBitmaps: make([]*big.Int, geometry.MAX_CHIPS),
	}
	for c := 0; c < geometry.MAX_CHIPS; c++ {
		rec.BadblockBitmaps[c] = m.bad[c].toBigInt()
		rec.AllocatedBitmaps[c] = m.allocated[c].toBigInt()
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("blockmgr: marshal state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("blockmgr: write state to %s: %w", path, err)
	}
	return nil
}

// Load restores a Manager's bitmaps and chip count from path, marking
// every loaded chip as already scanned so a subsequent Init does not
// re-run the bad-block scan against it.
func Load(cmd commander.Commander, path string) (*Manager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blockmgr: read state from %s: %w", path, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("blockmgr: unmarshal state from %s: %w", path, err)
	}

	m := New(cmd)
	m.numChip = rec.NumChip
	for c := 0; c < geometry.MAX_CHIPS && c < len(rec.BadblockBitmaps); c++ {
		m.bad[c] = bitmapFromBigInt(rec.BadblockBitmaps[c])
		m.scanned[c] = true
	}
	for c := 0; c < geometry.MAX_CHIPS && c < len(rec.AllocatedBitmaps); c++ {
		m.allocated[c] = bitmapFromBigInt(rec.AllocatedBitmaps[c])
	}
	return m, nil
}
