// Package mapping implements the LBA → PBA mapping table (§4.G): a
// partial function supporting resolve, overwrite-on-update, and unmap.
package mapping

// LBA is an opaque, non-negative logical block address (§3).
type LBA uint64

// Table is the in-memory LBA → PBA mapping. The zero value is ready to
// use, mirroring the teacher's small register-ish types (ppu/loopy.go)
// that need no constructor.
type Table struct {
	m map[LBA]PBA
}

// Resolve returns the PBA mapped to lba, or ok=false if unmapped.
func (t *Table) Resolve(lba LBA) (PBA, bool) {
	if t.m == nil {
		return 0, false
	}
	pba, ok := t.m[lba]
	return pba, ok
}

// Update maps lba to pba, overwriting any existing mapping.
func (t *Table) Update(lba LBA, pba PBA) {
	if t.m == nil {
		t.m = make(map[LBA]PBA)
	}
	t.m[lba] = pba
}

// Unmap removes lba's mapping, if any. Unmapping an absent LBA is a
// silent no-op (§4.G).
func (t *Table) Unmap(lba LBA) {
	delete(t.m, lba)
}
