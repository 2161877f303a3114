package mapping

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestPBARoundTrips(t *testing.T) {
	f := func(chip uint8, block uint16, page uint8, sector uint8) bool {
		c := int(chip % geometryMaxChips)
		b := int(block % (1 << blockBits))
		p := int(page % (1 << pageBits))
		s := int(sector % (1 << sectorBits))

		pba := NewPBA(c, b, p, s)
		gc, gb, gp, gs := pba.Decompose()
		return gc == c && gb == b && gp == p && gs == s
	}
	assert.NoError(t, quick.Check(f, nil))
}

const geometryMaxChips = 2

func TestResolveUnmapped(t *testing.T) {
	var tbl Table
	_, ok := tbl.Resolve(42)
	assert.False(t, ok)
}

func TestUpdateThenResolve(t *testing.T) {
	var tbl Table
	pba := NewPBA(0, 1, 2, 3)
	tbl.Update(5, pba)

	got, ok := tbl.Resolve(5)
	assert.True(t, ok)
	assert.Equal(t, pba, got)
}

func TestUpdateOverwrites(t *testing.T) {
	var tbl Table
	tbl.Update(5, NewPBA(0, 1, 0, 0))
	tbl.Update(5, NewPBA(0, 2, 0, 0))

	got, ok := tbl.Resolve(5)
	assert.True(t, ok)
	_, block, _, _ := got.Decompose()
	assert.Equal(t, 2, block)
}

func TestUnmapIsSilentOnAbsentLBA(t *testing.T) {
	var tbl Table
	assert.NotPanics(t, func() { tbl.Unmap(999) })

	tbl.Update(1, NewPBA(0, 0, 0, 0))
	tbl.Unmap(1)
	_, ok := tbl.Resolve(1)
	assert.False(t, ok)
}
